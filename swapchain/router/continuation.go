package router

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

// ContinuationLen is the size of a continuation account, discriminator included.
const ContinuationLen = 8 + 32 + 32 + TokenAmountLen + 32 + TokenAmountLen + 2 + 32 + 8 + TokenAmountLen + 1

// ContinuationSeed prefixes the derived continuation address.
const ContinuationSeed = "anchor"

// ContinuationDiscriminator tags continuation account data.
var ContinuationDiscriminator = accountDiscriminator("Continuation")

// Continuation threads one chain's state from Begin through each hop to End.
type Continuation struct {
	Owner                solana.PublicKey
	Payer                solana.PublicKey
	InitialAmountIn      TokenAmount
	Input                solana.PublicKey
	AmountIn             TokenAmount
	StepsLeft            uint16
	Output               solana.PublicKey
	OutputInitialBalance uint64
	MinimumAmountOut     TokenAmount
	Nonce                uint8
}

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Marshal encodes the continuation with its discriminator.
func (c *Continuation) Marshal() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ContinuationLen))
	buf.Write(ContinuationDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode continuation: %w", err)
	}
	return buf.Bytes(), nil
}

// Pack writes the continuation into account data.
func (c *Continuation) Pack(dst []byte) error {
	if len(dst) < ContinuationLen {
		return ledger.ErrAccountDataTooSmall
	}
	raw, err := c.Marshal()
	if err != nil {
		return err
	}
	copy(dst, raw)
	return nil
}

// DecodeContinuation parses continuation account data.
func DecodeContinuation(data []byte) (*Continuation, error) {
	if len(data) < 8 {
		return nil, ledger.ErrAccountDataTooSmall
	}
	if !bytes.Equal(data[:8], ContinuationDiscriminator[:]) {
		return nil, ledger.ErrAccountDiscriminatorMismatch
	}
	if len(data) < ContinuationLen {
		return nil, ledger.ErrAccountDataTooSmall
	}
	var c Continuation
	if err := bin.NewBorshDecoder(data[8:ContinuationLen]).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidAccountData, err)
	}
	return &c, nil
}

// IsContinuation reports whether acc holds an open continuation of programID.
func IsContinuation(acc *ledger.Account, programID solana.PublicKey) bool {
	return acc != nil &&
		acc.Owner.Equals(programID) &&
		acc.Lamports > 0 &&
		len(acc.Data) >= 8 &&
		bytes.Equal(acc.Data[:8], ContinuationDiscriminator[:])
}

// DeriveContinuation returns the continuation address Begin expects for owner and random.
func DeriveContinuation(programID, owner, random solana.PublicKey) (solana.PublicKey, uint8, error) {
	return ledger.FindProgramAddress(continuationSeeds(owner, random), programID)
}

func continuationSeeds(owner, random solana.PublicKey) [][]byte {
	return [][]byte{[]byte(ContinuationSeed), owner[:], random[:]}
}

// loadContinuation reads the continuation a hop or End was given.
func (p *Program) loadContinuation(info *ledger.AccountInfo) (*Continuation, error) {
	if !info.Owner.Equals(p.id) {
		return nil, ledger.ErrIllegalOwner
	}
	if !info.IsWritable {
		return nil, ledger.ErrReadonlyDataModified
	}
	return DecodeContinuation(info.Data)
}
