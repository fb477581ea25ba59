package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramError is a host level failure raised while executing an instruction.
// Programs may return these directly or wrap them.
type ProgramError struct {
	Name    string
	Message string
}

func (e *ProgramError) Error() string {
	return e.Name + ": " + e.Message
}

func newProgramError(name, msg string) *ProgramError {
	return &ProgramError{Name: name, Message: msg}
}

var (
	ErrNotEnoughAccountKeys         = newProgramError("NotEnoughAccountKeys", "insufficient account keys for instruction")
	ErrMissingRequiredSignature     = newProgramError("MissingRequiredSignature", "missing required signature for instruction")
	ErrInvalidSeeds                 = newProgramError("InvalidSeeds", "provided seeds do not result in a valid address")
	ErrAccountAlreadyInitialized    = newProgramError("AccountAlreadyInitialized", "account already initialized")
	ErrAccountAlreadyInUse          = newProgramError("AccountAlreadyInUse", "an account with the same address already exists")
	ErrUninitializedAccount         = newProgramError("UninitializedAccount", "attempt to operate on an account that hasn't been initialized")
	ErrInvalidAccountData           = newProgramError("InvalidAccountData", "invalid account data for instruction")
	ErrInvalidInstructionData       = newProgramError("InvalidInstructionData", "invalid instruction data")
	ErrInvalidArgument              = newProgramError("InvalidArgument", "invalid program argument")
	ErrIllegalOwner                 = newProgramError("IllegalOwner", "provided owner is not allowed")
	ErrIncorrectProgramID           = newProgramError("IncorrectProgramId", "incorrect program id for instruction")
	ErrInsufficientFunds            = newProgramError("InsufficientFunds", "insufficient funds for instruction")
	ErrConstraintHasOne             = newProgramError("ConstraintHasOne", "a has one constraint was violated")
	ErrReadonlyDataModified         = newProgramError("ReadonlyDataModified", "instruction modified data of a read-only account")
	ErrReadonlyLamportChange        = newProgramError("ReadonlyLamportChange", "instruction changed the balance of a read-only account")
	ErrExternalAccountDataModified  = newProgramError("ExternalAccountDataModified", "instruction modified data of an account it does not own")
	ErrExternalAccountLamportSpend  = newProgramError("ExternalAccountLamportSpend", "instruction spent from the balance of an account it does not own")
	ErrModifiedProgramID            = newProgramError("ModifiedProgramId", "instruction illegally modified the program id of an account")
	ErrUnbalancedInstruction        = newProgramError("UnbalancedInstruction", "sum of account balances before and after instruction do not match")
	ErrPrivilegeEscalation          = newProgramError("PrivilegeEscalation", "cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth                    = newProgramError("CallDepth", "cross-program invocation call depth too deep")
	ErrReentrancy                   = newProgramError("ReentrancyNotAllowed", "cross-program invocation reentrancy not allowed for this instruction")
	ErrUnsupportedProgramID         = newProgramError("UnsupportedProgramId", "unsupported program id")
	ErrDuplicateTransaction         = newProgramError("DuplicateTransaction", "transaction has already been processed")
	ErrSignatureFailure             = newProgramError("SignatureFailure", "transaction did not pass signature verification")
	ErrEmptyTransaction             = newProgramError("EmptyTransaction", "transaction contains no instructions")
	ErrArithmeticOverflow           = newProgramError("ArithmeticOverflow", "program arithmetic overflowed")
	ErrAccountDataTooSmall          = newProgramError("AccountDataTooSmall", "account data too small for instruction")
	ErrAccountDiscriminatorMismatch = newProgramError("AccountDiscriminatorMismatch", "account discriminator did not match what was expected")
	ErrMissingAccount               = newProgramError("MissingAccount", "an account required by the instruction is missing")
	ErrProgramNotFound              = newProgramError("ProgramNotFound", "attempt to invoke a program that is not registered")
)

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index     int
	ProgramID solana.PublicKey
	Err       error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.Index, e.ProgramID, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// Named is implemented by errors that carry a stable symbolic name.
type Named interface {
	Name() string
}

// ErrorName returns the symbolic name of the innermost named error in err's chain.
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	var named Named
	if errors.As(err, &named) {
		return named.Name()
	}
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Name
	}
	return "Unknown"
}
