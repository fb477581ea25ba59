package router

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	SwapActionEventDiscriminator   = eventDiscriminator("SwapActionEvent")
	SwapCompleteEventDiscriminator = eventDiscriminator("SwapCompleteEvent")
)

func eventDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// SwapActionEvent is emitted after every successful hop.
type SwapActionEvent struct {
	ActionType    ActionType
	Owner         solana.PublicKey
	InputAmount   TokenAmount
	OutputAccount solana.PublicKey
	OutputAmount  TokenAmount
}

// SwapCompleteEvent is emitted by End.
type SwapCompleteEvent struct {
	Owner     solana.PublicKey
	AmountIn  TokenAmount
	AmountOut TokenAmount
}

type swapActionWire struct {
	ActionType    uint8
	Owner         solana.PublicKey
	InputAmount   TokenAmount
	OutputAccount solana.PublicKey
	OutputAmount  TokenAmount
}

// Marshal encodes the event behind its discriminator.
func (e *SwapActionEvent) Marshal() ([]byte, error) {
	variant, err := e.ActionType.Variant()
	if err != nil {
		return nil, err
	}
	return encodeEvent(SwapActionEventDiscriminator, swapActionWire{
		ActionType:    variant,
		Owner:         e.Owner,
		InputAmount:   e.InputAmount,
		OutputAccount: e.OutputAccount,
		OutputAmount:  e.OutputAmount,
	})
}

func (e *SwapCompleteEvent) Marshal() ([]byte, error) {
	return encodeEvent(SwapCompleteEventDiscriminator, e)
}

func encodeEvent(disc [8]byte, v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEvent parses an emitted router event. It returns *SwapActionEvent or
// *SwapCompleteEvent, or ok=false when data is not a router event.
func DecodeEvent(data []byte) (event any, ok bool, err error) {
	if len(data) < 8 {
		return nil, false, nil
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	dec := bin.NewBorshDecoder(data[8:])
	switch disc {
	case SwapActionEventDiscriminator:
		var w swapActionWire
		if err := dec.Decode(&w); err != nil {
			return nil, true, fmt.Errorf("failed to decode SwapActionEvent: %w", err)
		}
		at, err := ActionTypeFromVariant(w.ActionType)
		if err != nil {
			return nil, true, err
		}
		return &SwapActionEvent{
			ActionType:    at,
			Owner:         w.Owner,
			InputAmount:   w.InputAmount,
			OutputAccount: w.OutputAccount,
			OutputAmount:  w.OutputAmount,
		}, true, nil
	case SwapCompleteEventDiscriminator:
		var e SwapCompleteEvent
		if err := dec.Decode(&e); err != nil {
			return nil, true, fmt.Errorf("failed to decode SwapCompleteEvent: %w", err)
		}
		return &e, true, nil
	default:
		return nil, false, nil
	}
}
