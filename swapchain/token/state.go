package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

const (
	// MintLen is the encoded size of a Mint.
	MintLen = 32 + 8 + 1 + 1
	// AccountLen is the encoded size of a token Account.
	AccountLen = 32 + 32 + 8 + 1
)

type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
)

// Mint describes one asset.
type Mint struct {
	Authority   solana.PublicKey
	Supply      uint64
	Decimals    uint8
	Initialized bool
}

// Account is a balance record of one mint held by one owner.
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	State  AccountState
}

func encode(v any, size int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	// Fixed size structs into a buffer.
	_ = bin.NewBorshEncoder(buf).Encode(v)
	return buf.Bytes()
}

// Pack writes the mint into dst, which must be at least MintLen bytes.
func (m *Mint) Pack(dst []byte) error {
	if len(dst) < MintLen {
		return ledger.ErrAccountDataTooSmall
	}
	copy(dst, encode(m, MintLen))
	return nil
}

// Pack writes the account into dst, which must be at least AccountLen bytes.
func (a *Account) Pack(dst []byte) error {
	if len(dst) < AccountLen {
		return ledger.ErrAccountDataTooSmall
	}
	copy(dst, encode(a, AccountLen))
	return nil
}

// DecodeMint parses mint data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintLen {
		return nil, ledger.ErrAccountDataTooSmall
	}
	var m Mint
	if err := bin.NewBorshDecoder(data[:MintLen]).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode mint: %w", err)
	}
	return &m, nil
}

// DecodeAccount parses token account data.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) < AccountLen {
		return nil, ledger.ErrAccountDataTooSmall
	}
	var a Account
	if err := bin.NewBorshDecoder(data[:AccountLen]).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode token account: %w", err)
	}
	return &a, nil
}

// UnpackAccount reads an initialized token account owned by the token program.
func UnpackAccount(info *ledger.AccountInfo) (*Account, error) {
	if !info.Owner.Equals(ProgramID) {
		return nil, ledger.ErrIllegalOwner
	}
	acc, err := DecodeAccount(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	if acc.State != AccountInitialized {
		return nil, ledger.ErrUninitializedAccount
	}
	return acc, nil
}

// UnpackMint reads an initialized mint owned by the token program.
func UnpackMint(info *ledger.AccountInfo) (*Mint, error) {
	if !info.Owner.Equals(ProgramID) {
		return nil, ledger.ErrIllegalOwner
	}
	m, err := DecodeMint(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	if !m.Initialized {
		return nil, ledger.ErrUninitializedAccount
	}
	return m, nil
}
