package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Program is an on ledger program. Process runs one instruction against the
// accounts the caller passed in. Returning an error aborts the whole unit.
type Program interface {
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// Finalizer is implemented by programs that need to inspect a unit after its
// last instruction and before it commits.
type Finalizer interface {
	FinalizeUnit(ctx context.Context, changed map[solana.PublicKey]*Account) error
}

// InvokeContext is the handle a program uses to talk to the host while it runs.
type InvokeContext struct {
	unit  *unit
	frame *frame
	depth int
}

// Context returns the context of the unit being executed.
func (c *InvokeContext) Context() context.Context {
	return c.unit.ctx
}

// ProgramID is the id of the running program.
func (c *InvokeContext) ProgramID() solana.PublicKey {
	return c.frame.programID
}

// Depth is the invocation depth, 1 for a top level instruction.
func (c *InvokeContext) Depth() int {
	return c.depth
}

func (c *InvokeContext) Log(msg string) {
	c.unit.log("Program log: %s", msg)
}

func (c *InvokeContext) Logf(format string, args ...any) {
	c.Log(fmt.Sprintf(format, args...))
}

// Emit records a structured event for off ledger consumers.
func (c *InvokeContext) Emit(data []byte) {
	c.unit.emit(data)
}

func (c *InvokeContext) SetReturnData(data []byte) {
	c.unit.returnData = returnData{programID: c.frame.programID, data: append([]byte(nil), data...)}
}

// ReturnData returns the last value set by any program in this unit together
// with the program that set it.
func (c *InvokeContext) ReturnData() (solana.PublicKey, []byte) {
	return c.unit.returnData.programID, c.unit.returnData.data
}

// Invoke calls another program with privileges the caller already holds.
func (c *InvokeContext) Invoke(ix Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned calls another program. Every seed set signs for the address it
// derives under the calling program.
func (c *InvokeContext) InvokeSigned(ix Instruction, signerSeeds ...[][]byte) error {
	pdaSigners := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		key, err := CreateProgramAddress(seeds, c.frame.programID)
		if err != nil {
			return err
		}
		pdaSigners[key] = true
	}
	for _, m := range ix.Accounts {
		writable, present := c.frame.writable[m.PublicKey]
		if !present {
			return fmt.Errorf("%w: %s", ErrMissingAccount, m.PublicKey)
		}
		if m.IsWritable && !writable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, m.PublicKey)
		}
		if m.IsSigner && !c.frame.signer[m.PublicKey] && !pdaSigners[m.PublicKey] {
			return fmt.Errorf("%w: %s did not sign", ErrPrivilegeEscalation, m.PublicKey)
		}
	}

	// Changes made by the caller so far are checked against its own rights
	// before the callee sees them.
	if err := c.frame.verify(c.unit); err != nil {
		return err
	}
	if err := c.unit.invoke(c.depth+1, ix); err != nil {
		return err
	}
	c.frame.snapshot(c.unit)
	return nil
}
