package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// System program instruction tags.
const (
	SystemCreateAccount uint32 = 0
	SystemAssign        uint32 = 1
	SystemTransfer      uint32 = 2
	SystemAllocate      uint32 = 8
)

// MaxAccountDataLen caps the data region the system program will allocate.
const MaxAccountDataLen = 10 * 1024 * 1024

type createAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type assignArgs struct {
	Owner solana.PublicKey
}

type transferArgs struct {
	Lamports uint64
}

type allocateArgs struct {
	Space uint64
}

// SystemProgram creates accounts, moves lamports and hands accounts to other programs.
type SystemProgram struct{}

func (SystemProgram) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return ErrInvalidInstructionData
	}
	switch tag {
	case SystemCreateAccount:
		var args createAccountArgs
		if err := dec.Decode(&args); err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		from, to := accounts[0], accounts[1]
		if !to.IsSigner {
			return ErrMissingRequiredSignature
		}
		if to.Lamports > 0 || len(to.Data) > 0 || !to.Owner.Equals(solana.SystemProgramID) {
			ctx.Logf("Create Account: account %s already in use", to.Key)
			return ErrAccountAlreadyInUse
		}
		if err := allocate(to, args.Space); err != nil {
			return err
		}
		to.Owner = args.Owner
		return transfer(ctx, from, to, args.Lamports)
	case SystemAssign:
		var args assignArgs
		if err := dec.Decode(&args); err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		acc := accounts[0]
		if !acc.IsSigner {
			return ErrMissingRequiredSignature
		}
		if !acc.Owner.Equals(solana.SystemProgramID) {
			return ErrIllegalOwner
		}
		acc.Owner = args.Owner
		return nil
	case SystemTransfer:
		var args transferArgs
		if err := dec.Decode(&args); err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return transfer(ctx, accounts[0], accounts[1], args.Lamports)
	case SystemAllocate:
		var args allocateArgs
		if err := dec.Decode(&args); err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		acc := accounts[0]
		if !acc.IsSigner {
			return ErrMissingRequiredSignature
		}
		if !acc.Owner.Equals(solana.SystemProgramID) {
			return ErrIllegalOwner
		}
		return allocate(acc, args.Space)
	default:
		return ErrInvalidInstructionData
	}
}

func allocate(acc *AccountInfo, space uint64) error {
	if len(acc.Data) > 0 {
		return ErrAccountAlreadyInUse
	}
	if space > MaxAccountDataLen {
		return ErrInvalidArgument
	}
	acc.Data = make([]byte, space)
	return nil
}

func transfer(ctx *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return ErrMissingRequiredSignature
	}
	if !from.Owner.Equals(solana.SystemProgramID) || len(from.Data) > 0 {
		return ErrInvalidArgument
	}
	if from.Lamports < lamports {
		ctx.Logf("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrInsufficientFunds
	}
	if to.Lamports+lamports < to.Lamports {
		return ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func encodeSystem(tag uint32, args any) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	// Writes into a bytes.Buffer cannot fail.
	_ = enc.WriteUint32(tag, bin.LE)
	_ = enc.Encode(args)
	return buf.Bytes()
}

// CreateAccount moves lamports from payer into a fresh account of space bytes owned by owner.
func CreateAccount(payer, account solana.PublicKey, lamports, space uint64, owner solana.PublicKey) Instruction {
	return NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(account, true, true),
	}, encodeSystem(SystemCreateAccount, createAccountArgs{Lamports: lamports, Space: space, Owner: owner}))
}

func Transfer(from, to solana.PublicKey, lamports uint64) Instruction {
	return NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(from, true, true),
		solana.NewAccountMeta(to, true, false),
	}, encodeSystem(SystemTransfer, transferArgs{Lamports: lamports}))
}

func Assign(account, owner solana.PublicKey) Instruction {
	return NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, true),
	}, encodeSystem(SystemAssign, assignArgs{Owner: owner}))
}

func Allocate(account solana.PublicKey, space uint64) Instruction {
	return NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, true),
	}, encodeSystem(SystemAllocate, allocateArgs{Space: space}))
}
