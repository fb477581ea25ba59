package router

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TokenAmountLen is the encoded size of a TokenAmount.
const TokenAmountLen = 32 + 8

// TokenAmount is a quantity of one mint.
type TokenAmount struct {
	Mint   solana.PublicKey
	Amount uint64
}

func NewTokenAmount(mint solana.PublicKey, amount uint64) TokenAmount {
	return TokenAmount{Mint: mint, Amount: amount}
}

func (t TokenAmount) String() string {
	return fmt.Sprintf("%d %s", t.Amount, t.Mint)
}
