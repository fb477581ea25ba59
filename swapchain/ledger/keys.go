package ledger

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// ProgramIDFromName derives a stable program id from a human readable name.
// Registered programs that are not part of the well known set use it so every
// node agrees on their address without a deploy step.
func ProgramIDFromName(name string) solana.PublicKey {
	sum := sha256.Sum256([]byte("program:" + name))
	return solana.PublicKeyFromBytes(sum[:])
}

// FindProgramAddress searches for an off curve address for seeds under programID.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(seeds, programID)
}

// CreateProgramAddress derives the address for seeds that already include the bump.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	key, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, ErrInvalidSeeds
	}
	return key, nil
}

const (
	// accountStorageOverhead is charged on top of the data length.
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionYears         = 2
)

// MinimumBalance returns the lamports an account with space bytes of data needs
// to be rent exempt.
func MinimumBalance(space int) uint64 {
	return uint64(accountStorageOverhead+space) * lamportsPerByteYear * exemptionYears
}
