package token

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

type initializeMintArgs struct {
	Decimals  uint8
	Authority solana.PublicKey
}

type initializeAccountArgs struct {
	Owner solana.PublicKey
}

type amountArgs struct {
	Amount uint64
}

func decodeArgs(data []byte, v any) error {
	if err := bin.NewBorshDecoder(data).Decode(v); err != nil {
		return ledger.ErrInvalidInstructionData
	}
	return nil
}

func instructionData(tag uint8, args any) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(tag)
	if args != nil {
		_ = bin.NewBorshEncoder(buf).Encode(args)
	}
	return buf.Bytes()
}

func InitializeMint(mint solana.PublicKey, decimals uint8, authority solana.PublicKey) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(mint, true, false),
	}, instructionData(TagInitializeMint, initializeMintArgs{Decimals: decimals, Authority: authority}))
}

func InitializeAccount(account, mint, owner solana.PublicKey) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(mint, false, false),
	}, instructionData(TagInitializeAccount3, initializeAccountArgs{Owner: owner}))
}

// Transfer moves amount from source to destination. authority must own source.
func Transfer(source, destination, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, instructionData(TagTransfer, amountArgs{Amount: amount}))
}

func MintTo(mint, destination, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, instructionData(TagMintTo, amountArgs{Amount: amount}))
}

func Burn(account, mint, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, instructionData(TagBurn, amountArgs{Amount: amount}))
}

func CloseAccount(account, destination, authority solana.PublicKey) ledger.Instruction {
	return ledger.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, instructionData(TagCloseAccount, nil))
}
