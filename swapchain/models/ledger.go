package models

// SubmitTransactionRequest carries a signed unit.
type SubmitTransactionRequest struct {
	Transaction string `json:"transaction"` // base64 of the binary encoding
}

// SimulateTransactionRequest carries a unit to dry run. Signatures are not checked.
type SimulateTransactionRequest struct {
	Transaction string `json:"transaction"`
}

// TransactionResponse is the receipt of a submitted or simulated unit.
// A unit that rolled back is a valid answer: Success is false and Error is set.
type TransactionResponse struct {
	ID        string   `json:"id"`
	Success   bool     `json:"success"`
	Simulated bool     `json:"simulated,omitempty"`
	ErrorName string   `json:"error_name,omitempty"` // e.g. "MinimumOutNotMet"
	ErrorCode uint32   `json:"error_code,omitempty"` // router codes start at 6000
	Error     string   `json:"error,omitempty"`
	Logs      []string `json:"logs"`
	Events    []Event  `json:"events"`
	Changed   []string `json:"changed_accounts"`
}

// Event is a raw emitted event, decoded when it belongs to the router.
type Event struct {
	Name       string           `json:"name"` // "SwapActionEvent", "SwapCompleteEvent" or "unknown"
	Data       string           `json:"data"` // base64
	SwapAction *SwapActionEvent `json:"swap_action,omitempty"`
	Complete   *SwapComplete    `json:"swap_complete,omitempty"`
}

type TokenAmount struct {
	Mint   string `json:"mint"`
	Amount string `json:"amount"`
}

type SwapActionEvent struct {
	ActionType    string       `json:"action_type"`
	Owner         string       `json:"owner"`
	InputAmount   *TokenAmount `json:"input_amount"`
	OutputAccount string       `json:"output_account"`
	OutputAmount  *TokenAmount `json:"output_amount"`
}

type SwapComplete struct {
	Owner     string       `json:"owner"`
	AmountIn  *TokenAmount `json:"amount_in"`
	AmountOut *TokenAmount `json:"amount_out"`
}

type GetAccountRequest struct {
	Address string `json:"address"`
}

type AccountResponse struct {
	Address    string `json:"address"`
	Exists     bool   `json:"exists"`
	Lamports   string `json:"lamports,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Executable bool   `json:"executable,omitempty"`
	Data       string `json:"data,omitempty"` // base64
}

type GetContinuationRequest struct {
	Address string `json:"address"`
}

// ContinuationResponse is a decoded in-flight chain record.
type ContinuationResponse struct {
	Address              string       `json:"address"`
	Owner                string       `json:"owner"`
	Payer                string       `json:"payer"`
	InitialAmountIn      *TokenAmount `json:"initial_amount_in"`
	Input                string       `json:"input"`
	AmountIn             *TokenAmount `json:"amount_in"`
	StepsLeft            uint16       `json:"steps_left"`
	Output               string       `json:"output"`
	OutputInitialBalance string       `json:"output_initial_balance"`
	MinimumAmountOut     *TokenAmount `json:"minimum_amount_out"`
	Nonce                uint8        `json:"nonce"`
}

// GetTokenBalanceRequest addresses a balance record directly, or by
// owner and mint through the associated address.
type GetTokenBalanceRequest struct {
	Address string `json:"address,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Mint    string `json:"mint,omitempty"`
}

type TokenBalanceResponse struct {
	Address  string `json:"address"`
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type DeriveContinuationRequest struct {
	Owner  string `json:"owner"`
	Random string `json:"random"`
}

type DeriveContinuationResponse struct {
	Address string `json:"address"`
	Nonce   uint8  `json:"nonce"`
}

type Program struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListProgramsResponse struct {
	Programs []Program `json:"programs"`
}
