package config

// NodeConfig configures swapchaind.
type NodeConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`

	// ledger configs
	DataDir  string `toml:"data_dir" mapstructure:"data_dir"`
	InMemory bool   `toml:"in_memory" mapstructure:"in_memory"`
	// Genesis is a local path or any go-getter source (https, s3, git).
	Genesis         string `toml:"genesis" mapstructure:"genesis"`
	ReplayCacheSize int    `toml:"replay_cache_size" mapstructure:"replay_cache_size"`
	// AllowCrossUnitChains lets a continuation stay open between units.
	AllowCrossUnitChains bool `toml:"allow_cross_unit_chains" mapstructure:"allow_cross_unit_chains"`

	LogLevel string `toml:"log_level" mapstructure:"log_level"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`
}

// Genesis is the initial ledger state. Mints, pools and wrapped mints are
// addressed by name so route plans can refer to them without a lookup.
type Genesis struct {
	Mints    []GenesisMint    `toml:"mints"`
	Accounts []GenesisAccount `toml:"accounts"`
	Pools    []GenesisPool    `toml:"pools"`
	Wrappers []GenesisWrapper `toml:"wrappers"`
	Wallets  []GenesisWallet  `toml:"wallets"`
}

type GenesisMint struct {
	Name     string `toml:"name"`
	Decimals uint8  `toml:"decimals"`
	// Authority is a base58 key allowed to mint. Empty means a fixed supply.
	Authority string `toml:"authority"`
}

// GenesisAccount is a token balance held in the owner's associated account.
type GenesisAccount struct {
	Owner  string `toml:"owner"`
	Mint   string `toml:"mint"`
	Amount uint64 `toml:"amount"`
}

type GenesisPool struct {
	Name  string `toml:"name"`
	MintA string `toml:"mint_a"`
	MintB string `toml:"mint_b"`
	Amp   uint64 `toml:"amp"`
	// fees are fractions, "0.0004" is 4 bps
	TradeFee    string `toml:"trade_fee"`
	WithdrawFee string `toml:"withdraw_fee"`
	ReserveA    uint64 `toml:"reserve_a"`
	ReserveB    uint64 `toml:"reserve_b"`
}

// GenesisWrapper creates a decimal wrapper over an underlying mint. The
// wrapped mint is registered under Name, "w" + underlying by default.
type GenesisWrapper struct {
	Name       string `toml:"name"`
	Underlying string `toml:"underlying"`
	Decimals   uint8  `toml:"decimals"`
}

type GenesisWallet struct {
	Pubkey   string `toml:"pubkey"`
	Lamports uint64 `toml:"lamports"`
}
