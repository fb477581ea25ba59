package router

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "router").Logger()
}

// ErrorCode is a router failure. Codes start at 6000 and follow declaration order.
type ErrorCode uint32

const (
	ErrPathInputOutputMismatch ErrorCode = iota + 6000
	ErrTransitiveSwapCalculationError
	ErrOverflowSwapResult
	ErrBalanceLower
	ErrZeroSwap
	ErrInputOwnerMismatch
	ErrInputMintMismatch
	ErrOutputOwnerMismatch
	ErrNoMoreSteps
	ErrInsufficientInputBalance
	ErrEndIncomplete
	ErrMinimumOutNotMet
	ErrOutputMintMismatch
	ErrContinuationLeftOpen
)

var errorNames = map[ErrorCode]string{
	ErrPathInputOutputMismatch:        "PathInputOutputMismatch",
	ErrTransitiveSwapCalculationError: "TransitiveSwapCalculationError",
	ErrOverflowSwapResult:             "OverflowSwapResult",
	ErrBalanceLower:                   "BalanceLower",
	ErrZeroSwap:                       "ZeroSwap",
	ErrInputOwnerMismatch:             "InputOwnerMismatch",
	ErrInputMintMismatch:              "InputMintMismatch",
	ErrOutputOwnerMismatch:            "OutputOwnerMismatch",
	ErrNoMoreSteps:                    "NoMoreSteps",
	ErrInsufficientInputBalance:       "InsufficientInputBalance",
	ErrEndIncomplete:                  "EndIncomplete",
	ErrMinimumOutNotMet:               "MinimumOutNotMet",
	ErrOutputMintMismatch:             "OutputMintMismatch",
	ErrContinuationLeftOpen:           "ContinuationLeftOpen",
}

var errorMessages = map[ErrorCode]string{
	ErrPathInputOutputMismatch:        "Path input does not match prior output.",
	ErrTransitiveSwapCalculationError: "Error in a transitive swap input/output calculation.",
	ErrOverflowSwapResult:             "Swap result overflowed when checking balance difference.",
	ErrBalanceLower:                   "Swap resulted in a balance lower than the original balance.",
	ErrZeroSwap:                       "Cannot perform a zero swap.",
	ErrInputOwnerMismatch:             "Input owner does not match continuation owner.",
	ErrInputMintMismatch:              "Input mint does not match continuation input mint.",
	ErrOutputOwnerMismatch:            "Output owner does not match continuation owner.",
	ErrNoMoreSteps:                    "No more steps to process.",
	ErrInsufficientInputBalance:       "Insufficient input balance",
	ErrEndIncomplete:                  "Must be at end of steps",
	ErrMinimumOutNotMet:               "Minimum amount out not met",
	ErrOutputMintMismatch:             "Output mint does not match continuation output mint",
	ErrContinuationLeftOpen:           "Continuation was not closed in the unit that used it",
}

func (e ErrorCode) Name() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

func (e ErrorCode) Message() string {
	return errorMessages[e]
}

func (e ErrorCode) Code() uint32 {
	return uint32(e)
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("custom program error: %#x (%s: %s)", uint32(e), e.Name(), e.Message())
}

// fail records code with the location of the failing check and returns it.
func fail(ctx *ledger.InvokeContext, code ErrorCode) error {
	_, file, line, _ := runtime.Caller(1)
	log.Warn().
		Caller(1).
		Str("error", code.Name()).
		Uint32("code", code.Code()).
		Msg(code.Message())
	if ctx != nil {
		ctx.Logf("Error thrown in %s:%d. Error Code: %s. Error Number: %d. Error Message: %s",
			filepath.Base(file), line, code.Name(), code.Code(), code.Message())
	}
	return code
}
