// Package v1connect defines the swapchain.v1.LedgerService procedures and
// builds connect handlers and clients for them. Messages are plain Go
// structs carried by Codec, so no generated protobuf code is involved.
package v1connect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
)

// LedgerServiceName is the fully-qualified name of the LedgerService service.
const LedgerServiceName = "swapchain.v1.LedgerService"

const (
	LedgerServiceSubmitTransactionProcedure   = "/swapchain.v1.LedgerService/SubmitTransaction"
	LedgerServiceSimulateTransactionProcedure = "/swapchain.v1.LedgerService/SimulateTransaction"
	LedgerServiceGetAccountProcedure          = "/swapchain.v1.LedgerService/GetAccount"
	LedgerServiceGetContinuationProcedure     = "/swapchain.v1.LedgerService/GetContinuation"
	LedgerServiceGetTokenBalanceProcedure     = "/swapchain.v1.LedgerService/GetTokenBalance"
	LedgerServiceDeriveContinuationProcedure  = "/swapchain.v1.LedgerService/DeriveContinuation"
	LedgerServiceListProgramsProcedure        = "/swapchain.v1.LedgerService/ListPrograms"
)

// Codec encodes plain structs with encoding/json and protobuf messages with
// protojson. It registers under the "json" name, replacing connect's default.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// LedgerServiceHandler is implemented by the node.
type LedgerServiceHandler interface {
	SubmitTransaction(context.Context, *connect.Request[models.SubmitTransactionRequest]) (*connect.Response[models.TransactionResponse], error)
	SimulateTransaction(context.Context, *connect.Request[models.SimulateTransactionRequest]) (*connect.Response[models.TransactionResponse], error)
	GetAccount(context.Context, *connect.Request[models.GetAccountRequest]) (*connect.Response[models.AccountResponse], error)
	GetContinuation(context.Context, *connect.Request[models.GetContinuationRequest]) (*connect.Response[models.ContinuationResponse], error)
	GetTokenBalance(context.Context, *connect.Request[models.GetTokenBalanceRequest]) (*connect.Response[models.TokenBalanceResponse], error)
	DeriveContinuation(context.Context, *connect.Request[models.DeriveContinuationRequest]) (*connect.Response[models.DeriveContinuationResponse], error)
	ListPrograms(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[models.ListProgramsResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	readOnly := append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	handlers := map[string]http.Handler{
		LedgerServiceSubmitTransactionProcedure:   connect.NewUnaryHandler(LedgerServiceSubmitTransactionProcedure, svc.SubmitTransaction, opts...),
		LedgerServiceSimulateTransactionProcedure: connect.NewUnaryHandler(LedgerServiceSimulateTransactionProcedure, svc.SimulateTransaction, readOnly...),
		LedgerServiceGetAccountProcedure:          connect.NewUnaryHandler(LedgerServiceGetAccountProcedure, svc.GetAccount, readOnly...),
		LedgerServiceGetContinuationProcedure:     connect.NewUnaryHandler(LedgerServiceGetContinuationProcedure, svc.GetContinuation, readOnly...),
		LedgerServiceGetTokenBalanceProcedure:     connect.NewUnaryHandler(LedgerServiceGetTokenBalanceProcedure, svc.GetTokenBalance, readOnly...),
		LedgerServiceDeriveContinuationProcedure:  connect.NewUnaryHandler(LedgerServiceDeriveContinuationProcedure, svc.DeriveContinuation, readOnly...),
		LedgerServiceListProgramsProcedure:        connect.NewUnaryHandler(LedgerServiceListProgramsProcedure, svc.ListPrograms, readOnly...),
	}
	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// LedgerServiceClient calls a LedgerService.
type LedgerServiceClient struct {
	submitTransaction   *connect.Client[models.SubmitTransactionRequest, models.TransactionResponse]
	simulateTransaction *connect.Client[models.SimulateTransactionRequest, models.TransactionResponse]
	getAccount          *connect.Client[models.GetAccountRequest, models.AccountResponse]
	getContinuation     *connect.Client[models.GetContinuationRequest, models.ContinuationResponse]
	getTokenBalance     *connect.Client[models.GetTokenBalanceRequest, models.TokenBalanceResponse]
	deriveContinuation  *connect.Client[models.DeriveContinuationRequest, models.DeriveContinuationResponse]
	listPrograms        *connect.Client[emptypb.Empty, models.ListProgramsResponse]
}

// NewLedgerServiceClient constructs a client for the service at baseURL,
// e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &LedgerServiceClient{
		submitTransaction:   connect.NewClient[models.SubmitTransactionRequest, models.TransactionResponse](httpClient, baseURL+LedgerServiceSubmitTransactionProcedure, opts...),
		simulateTransaction: connect.NewClient[models.SimulateTransactionRequest, models.TransactionResponse](httpClient, baseURL+LedgerServiceSimulateTransactionProcedure, opts...),
		getAccount:          connect.NewClient[models.GetAccountRequest, models.AccountResponse](httpClient, baseURL+LedgerServiceGetAccountProcedure, opts...),
		getContinuation:     connect.NewClient[models.GetContinuationRequest, models.ContinuationResponse](httpClient, baseURL+LedgerServiceGetContinuationProcedure, opts...),
		getTokenBalance:     connect.NewClient[models.GetTokenBalanceRequest, models.TokenBalanceResponse](httpClient, baseURL+LedgerServiceGetTokenBalanceProcedure, opts...),
		deriveContinuation:  connect.NewClient[models.DeriveContinuationRequest, models.DeriveContinuationResponse](httpClient, baseURL+LedgerServiceDeriveContinuationProcedure, opts...),
		listPrograms:        connect.NewClient[emptypb.Empty, models.ListProgramsResponse](httpClient, baseURL+LedgerServiceListProgramsProcedure, opts...),
	}
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	if c == nil {
		return nil, errors.New("client is not initialised")
	}
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *LedgerServiceClient) SubmitTransaction(ctx context.Context, req *models.SubmitTransactionRequest) (*models.TransactionResponse, error) {
	return unary(ctx, c.submitTransaction, req)
}

func (c *LedgerServiceClient) SimulateTransaction(ctx context.Context, req *models.SimulateTransactionRequest) (*models.TransactionResponse, error) {
	return unary(ctx, c.simulateTransaction, req)
}

func (c *LedgerServiceClient) GetAccount(ctx context.Context, req *models.GetAccountRequest) (*models.AccountResponse, error) {
	return unary(ctx, c.getAccount, req)
}

func (c *LedgerServiceClient) GetContinuation(ctx context.Context, req *models.GetContinuationRequest) (*models.ContinuationResponse, error) {
	return unary(ctx, c.getContinuation, req)
}

func (c *LedgerServiceClient) GetTokenBalance(ctx context.Context, req *models.GetTokenBalanceRequest) (*models.TokenBalanceResponse, error) {
	return unary(ctx, c.getTokenBalance, req)
}

func (c *LedgerServiceClient) DeriveContinuation(ctx context.Context, req *models.DeriveContinuationRequest) (*models.DeriveContinuationResponse, error) {
	return unary(ctx, c.deriveContinuation, req)
}

func (c *LedgerServiceClient) ListPrograms(ctx context.Context) (*models.ListProgramsResponse, error) {
	return unary(ctx, c.listPrograms, &emptypb.Empty{})
}
