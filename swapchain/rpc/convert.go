package rpc

import (
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
)

// CONVERT FUNCTIONS
// These convert between ledger and router types and the API models.

func convertReceipt(r *ledger.Receipt, simulated bool) *models.TransactionResponse {
	resp := &models.TransactionResponse{
		ID:        r.ID,
		Success:   r.Succeeded(),
		Simulated: simulated,
		Logs:      r.Logs,
		Events:    make([]models.Event, 0, len(r.Events)),
		Changed:   make([]string, len(r.Changed)),
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
		resp.ErrorName = ledger.ErrorName(r.Err)
		var code router.ErrorCode
		if errors.As(r.Err, &code) {
			resp.ErrorCode = code.Code()
		}
	}
	for i, key := range r.Changed {
		resp.Changed[i] = key.String()
	}
	for _, raw := range r.Events {
		resp.Events = append(resp.Events, convertEvent(raw))
	}
	return resp
}

func convertEvent(raw []byte) models.Event {
	ev := models.Event{Name: "unknown", Data: base64.StdEncoding.EncodeToString(raw)}
	decoded, ok, err := router.DecodeEvent(raw)
	if !ok || err != nil {
		return ev
	}
	switch e := decoded.(type) {
	case *router.SwapActionEvent:
		ev.Name = "SwapActionEvent"
		ev.SwapAction = &models.SwapActionEvent{
			ActionType:    e.ActionType.String(),
			Owner:         e.Owner.String(),
			InputAmount:   convertAmount(e.InputAmount),
			OutputAccount: e.OutputAccount.String(),
			OutputAmount:  convertAmount(e.OutputAmount),
		}
	case *router.SwapCompleteEvent:
		ev.Name = "SwapCompleteEvent"
		ev.Complete = &models.SwapComplete{
			Owner:     e.Owner.String(),
			AmountIn:  convertAmount(e.AmountIn),
			AmountOut: convertAmount(e.AmountOut),
		}
	}
	return ev
}

func convertAmount(a router.TokenAmount) *models.TokenAmount {
	return &models.TokenAmount{Mint: a.Mint.String(), Amount: strconv.FormatUint(a.Amount, 10)}
}

func convertContinuation(key solana.PublicKey, c *router.Continuation) *models.ContinuationResponse {
	return &models.ContinuationResponse{
		Address:              key.String(),
		Owner:                c.Owner.String(),
		Payer:                c.Payer.String(),
		InitialAmountIn:      convertAmount(c.InitialAmountIn),
		Input:                c.Input.String(),
		AmountIn:             convertAmount(c.AmountIn),
		StepsLeft:            c.StepsLeft,
		Output:               c.Output.String(),
		OutputInitialBalance: strconv.FormatUint(c.OutputInitialBalance, 10),
		MinimumAmountOut:     convertAmount(c.MinimumAmountOut),
		Nonce:                c.Nonce,
	}
}
