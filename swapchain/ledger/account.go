package ledger

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account is a persisted record owned by a program. Only the owning program may
// change its data or debit its lamports.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Executable bool
	Data       []byte
}

// NewAccount returns an account owned by owner with a zeroed data region of space bytes.
func NewAccount(owner solana.PublicKey, lamports uint64, space int) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		Data:       data,
	}
}

// IsEmpty reports whether the account holds nothing and would be purged on commit.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0
}

// Equal compares two accounts field by field.
func (a *Account) Equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner.Equals(b.Owner) &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

func (a *Account) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(a); err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalAccount(data []byte) (*Account, error) {
	var a Account
	if err := bin.NewBorshDecoder(data).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &a, nil
}

// AccountInfo is the view of an account handed to a program for one instruction.
// The embedded Account is the working copy of the current atomic unit, so changes
// made by a cross-program invocation are visible to the caller once it returns.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}

// Meta returns the account meta that forwards this account with its current privileges.
func (ai *AccountInfo) Meta() *solana.AccountMeta {
	return solana.NewAccountMeta(ai.Key, ai.IsWritable, ai.IsSigner)
}
