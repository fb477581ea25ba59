package rpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"connectrpc.com/connect"
	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/rpc/v1connect"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
)

// LedgerServer implements the ConnectRPC LedgerServiceHandler interface
type LedgerServer struct {
	runtime  *ledger.Runtime
	routerID solana.PublicKey
}

// Verify that LedgerServer implements the interface
var _ v1connect.LedgerServiceHandler = (*LedgerServer)(nil)

// NewLedgerServer serves rt. routerID is the address the router program is
// registered at, used to decode and derive continuations.
func NewLedgerServer(rt *ledger.Runtime, routerID solana.PublicKey) *LedgerServer {
	return &LedgerServer{runtime: rt, routerID: routerID}
}

// SubmitTransaction executes a signed unit.
//
// Returns:
// - 400 Bad Request: undecodable unit or bad signatures
// - 409 Conflict: the unit was already executed
// - 200 OK with success=false: the unit ran and rolled back
// - 200 OK with success=true: the unit committed
func (s *LedgerServer) SubmitTransaction(
	ctx context.Context,
	req *connect.Request[models.SubmitTransactionRequest],
) (*connect.Response[models.TransactionResponse], error) {
	tx, err := decodeTransaction(req.Msg.Transaction)
	if err != nil {
		return nil, err
	}
	receipt, err := s.runtime.Execute(ctx, tx)
	if receipt == nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, ledger.ErrSignatureFailure), errors.Is(err, ledger.ErrEmptyTransaction):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		default:
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}
	return connect.NewResponse(convertReceipt(receipt, false)), nil
}

// SimulateTransaction runs a unit without committing it.
func (s *LedgerServer) SimulateTransaction(
	ctx context.Context,
	req *connect.Request[models.SimulateTransactionRequest],
) (*connect.Response[models.TransactionResponse], error) {
	tx, err := decodeTransaction(req.Msg.Transaction)
	if err != nil {
		return nil, err
	}
	receipt, err := s.runtime.Simulate(ctx, tx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(convertReceipt(receipt, true)), nil
}

func (s *LedgerServer) GetAccount(
	ctx context.Context,
	req *connect.Request[models.GetAccountRequest],
) (*connect.Response[models.AccountResponse], error) {
	key, err := parseKey("address", req.Msg.Address)
	if err != nil {
		return nil, err
	}
	acc, err := s.runtime.GetAccount(key)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp := &models.AccountResponse{Address: key.String()}
	if acc != nil {
		resp.Exists = true
		resp.Lamports = strconv.FormatUint(acc.Lamports, 10)
		resp.Owner = acc.Owner.String()
		resp.Executable = acc.Executable
		resp.Data = base64.StdEncoding.EncodeToString(acc.Data)
	}
	return connect.NewResponse(resp), nil
}

// GetContinuation decodes an open chain record.
func (s *LedgerServer) GetContinuation(
	ctx context.Context,
	req *connect.Request[models.GetContinuationRequest],
) (*connect.Response[models.ContinuationResponse], error) {
	key, err := parseKey("address", req.Msg.Address)
	if err != nil {
		return nil, err
	}
	acc, err := s.runtime.GetAccount(key)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if acc == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("account %s does not exist", key))
	}
	if !router.IsContinuation(acc, s.routerID) {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("account %s is not a continuation", key))
	}
	c, err := router.DecodeContinuation(acc.Data)
	if err != nil {
		return nil, connect.NewError(connect.CodeDataLoss, err)
	}
	return connect.NewResponse(convertContinuation(key, c)), nil
}

// GetTokenBalance reads a balance record by address or by owner and mint.
func (s *LedgerServer) GetTokenBalance(
	ctx context.Context,
	req *connect.Request[models.GetTokenBalanceRequest],
) (*connect.Response[models.TokenBalanceResponse], error) {
	key, err := s.balanceAddress(req.Msg)
	if err != nil {
		return nil, err
	}
	acc, err := s.runtime.GetAccount(key)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if acc == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("balance record %s does not exist", key))
	}
	if !acc.Owner.Equals(token.ProgramID) {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("account %s is not a balance record", key))
	}
	ta, err := token.DecodeAccount(acc.Data)
	if err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	resp := &models.TokenBalanceResponse{
		Address: key.String(),
		Mint:    ta.Mint.String(),
		Owner:   ta.Owner.String(),
		Amount:  strconv.FormatUint(ta.Amount, 10),
	}
	if mintAcc, err := s.runtime.GetAccount(ta.Mint); err == nil && mintAcc != nil {
		if m, err := token.DecodeMint(mintAcc.Data); err == nil {
			resp.Decimals = m.Decimals
		}
	}
	return connect.NewResponse(resp), nil
}

func (s *LedgerServer) balanceAddress(req *models.GetTokenBalanceRequest) (solana.PublicKey, error) {
	if req.Address != "" {
		return parseKey("address", req.Address)
	}
	owner, err := parseKey("owner", req.Owner)
	if err != nil {
		return solana.PublicKey{}, err
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	key, _, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return key, nil
}

// DeriveContinuation returns the address Begin expects for owner and random.
func (s *LedgerServer) DeriveContinuation(
	ctx context.Context,
	req *connect.Request[models.DeriveContinuationRequest],
) (*connect.Response[models.DeriveContinuationResponse], error) {
	owner, err := parseKey("owner", req.Msg.Owner)
	if err != nil {
		return nil, err
	}
	random, err := parseKey("random", req.Msg.Random)
	if err != nil {
		return nil, err
	}
	key, nonce, err := router.DeriveContinuation(s.routerID, owner, random)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&models.DeriveContinuationResponse{Address: key.String(), Nonce: nonce}), nil
}

func (s *LedgerServer) ListPrograms(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[models.ListProgramsResponse], error) {
	programs := s.runtime.Programs()
	resp := &models.ListProgramsResponse{Programs: make([]models.Program, len(programs))}
	for i, p := range programs {
		resp.Programs[i] = models.Program{ID: p.ID.String(), Name: p.Name}
	}
	return connect.NewResponse(resp), nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", field))
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s %q: %w", field, value, err))
	}
	return key, nil
}

func decodeTransaction(encoded string) (*ledger.Transaction, error) {
	if encoded == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("transaction is required"))
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("transaction is not base64: %w", err))
	}
	tx, err := ledger.UnmarshalTransaction(raw)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return tx, nil
}
