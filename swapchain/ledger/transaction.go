package ledger

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction is one call into a program with the accounts it may touch.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []*solana.AccountMeta
	Data      []byte
}

// NewInstruction builds an instruction.
func NewInstruction(programID solana.PublicKey, accounts []*solana.AccountMeta, data []byte) Instruction {
	return Instruction{ProgramID: programID, Accounts: accounts, Data: data}
}

// Transaction is an ordered list of instructions executed as one atomic unit.
type Transaction struct {
	// Nonce makes otherwise identical units distinct for replay protection.
	Nonce        uint64
	Instructions []Instruction
	Signatures   []solana.Signature
}

type wireMeta struct {
	Key      solana.PublicKey
	Signer   bool
	Writable bool
}

type wireInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []wireMeta
	Data      []byte
}

type wireMessage struct {
	Nonce        uint64
	Instructions []wireInstruction
}

type wireTransaction struct {
	Message    wireMessage
	Signatures []solana.Signature
}

func (tx *Transaction) wire() wireMessage {
	msg := wireMessage{Nonce: tx.Nonce, Instructions: make([]wireInstruction, len(tx.Instructions))}
	for i, ix := range tx.Instructions {
		metas := make([]wireMeta, len(ix.Accounts))
		for j, m := range ix.Accounts {
			metas[j] = wireMeta{Key: m.PublicKey, Signer: m.IsSigner, Writable: m.IsWritable}
		}
		msg.Instructions[i] = wireInstruction{ProgramID: ix.ProgramID, Accounts: metas, Data: ix.Data}
	}
	return msg
}

// Message returns the bytes covered by the signatures.
func (tx *Transaction) Message() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(tx.wire()); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// ID is the base58 sha256 of the message.
func (tx *Transaction) ID() (string, error) {
	msg, err := tx.Message()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(msg)
	return base58.Encode(sum[:]), nil
}

// Signers lists every account flagged as signer, in order of first appearance.
func (tx *Transaction) Signers() []solana.PublicKey {
	var signers []solana.PublicKey
	seen := make(map[solana.PublicKey]bool)
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.PublicKey] {
				seen[m.PublicKey] = true
				signers = append(signers, m.PublicKey)
			}
		}
	}
	return signers
}

// Sign replaces the signatures using the given keys. Every signer of the
// transaction must have a matching key.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	byPub := make(map[solana.PublicKey]solana.PrivateKey, len(keys))
	for _, k := range keys {
		byPub[k.PublicKey()] = k
	}
	signers := tx.Signers()
	sigs := make([]solana.Signature, len(signers))
	for i, signer := range signers {
		key, ok := byPub[signer]
		if !ok {
			return fmt.Errorf("failed to sign: no key for signer %s", signer)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return fmt.Errorf("failed to sign for %s: %w", signer, err)
		}
		sigs[i] = sig
	}
	tx.Signatures = sigs
	return nil
}

// Verify checks one signature per signer, in signer order.
func (tx *Transaction) Verify() error {
	if len(tx.Instructions) == 0 {
		return ErrEmptyTransaction
	}
	signers := tx.Signers()
	if len(tx.Signatures) != len(signers) {
		return ErrSignatureFailure
	}
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for i, signer := range signers {
		if !tx.Signatures[i].Verify(signer, msg) {
			return ErrSignatureFailure
		}
	}
	return nil
}

// MarshalBinary encodes the message and signatures.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	wt := wireTransaction{Message: tx.wire(), Signatures: tx.Signatures}
	if err := bin.NewBorshEncoder(buf).Encode(wt); err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalTransaction decodes the output of MarshalBinary.
func UnmarshalTransaction(data []byte) (*Transaction, error) {
	var wt wireTransaction
	if err := bin.NewBorshDecoder(data).Decode(&wt); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx := &Transaction{
		Nonce:        wt.Message.Nonce,
		Instructions: make([]Instruction, len(wt.Message.Instructions)),
		Signatures:   wt.Signatures,
	}
	for i, wi := range wt.Message.Instructions {
		metas := make([]*solana.AccountMeta, len(wi.Accounts))
		for j, m := range wi.Accounts {
			metas[j] = solana.NewAccountMeta(m.Key, m.Writable, m.Signer)
		}
		tx.Instructions[i] = Instruction{ProgramID: wi.ProgramID, Accounts: metas, Data: wi.Data}
	}
	return tx, nil
}
