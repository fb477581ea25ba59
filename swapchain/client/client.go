// Package client talks to one or more swapchaind nodes, failing over to
// backups when the primary is unavailable.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/models"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/rpc/v1connect"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "client").Logger()
}

// Client is a LedgerService client with failover support.
type Client struct {
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	services       map[string]*v1connect.LedgerServiceClient
	mu             sync.RWMutex
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed call on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults for failover behavior
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

// New creates a client for primaryURL. Backups are tried in order when the
// current endpoint stops answering, and a background checker moves back to
// the primary once it is healthy again.
func New(primaryURL string, backupURLs []string, config FailoverConfig) (*Client, error) {
	if err := validateURL(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid primary url: %w", err)
	}
	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if err := validateURL(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, strings.TrimRight(u, "/"))
	}
	primaryURL = strings.TrimRight(primaryURL, "/")

	c := &Client{
		httpClient:     &http.Client{Timeout: config.Timeout},
		primaryURL:     primaryURL,
		backupURLs:     validBackups,
		currentURL:     primaryURL,
		services:       make(map[string]*v1connect.LedgerServiceClient, len(validBackups)+1),
		failoverConfig: config,
	}
	for _, u := range append([]string{primaryURL}, validBackups...) {
		c.services[u] = v1connect.NewLedgerServiceClient(c.httpClient, u)
	}

	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		c.startHealthChecker()
	}

	log.Debug().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("Client initialized")
	return c, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// CurrentURL returns the endpoint calls are sent to.
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

func (c *Client) current() *v1connect.LedgerServiceClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[c.currentURL]
}

// Close stops the health checker
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

// isEndpointHealthy checks the node's health endpoint
func (c *Client) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/server/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// failover switches to the next healthy endpoint after the current one
func (c *Client) failover(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := 0
	for i, u := range all {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}
	for i := 1; i < len(all); i++ {
		next := all[(currentIdx+i)%len(all)]
		if c.isEndpointHealthy(ctx, next) {
			c.currentURL = next
			log.Info().Str("url", next).Msg("Failover to endpoint")
			return true
		}
	}

	log.Warn().Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

// retryable reports whether err means the call never reached a working node.
// Answers such as InvalidArgument or NotFound are returned as they are.
func retryable(err error) bool {
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeResourceExhausted:
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs fn with retries on the current endpoint, then once more after a failover.
func call[T any](ctx context.Context, c *Client, fn func(*v1connect.LedgerServiceClient) (T, error)) (T, error) {
	var zero T
	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, retryDelay); err != nil {
				return zero, err
			}
			retryDelay *= 2
		}
		res, err := fn(c.current())
		if err == nil {
			return res, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
	}

	if len(c.backupURLs) > 0 && c.failover(ctx) {
		res, err := fn(c.current())
		if err != nil {
			return zero, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return res, nil
	}
	return zero, fmt.Errorf("request failed after %d retries: %w", c.failoverConfig.MaxRetries+1, lastErr)
}

func encodeTransaction(tx *ledger.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SubmitTransaction executes a signed unit. A unit that rolled back is not an
// error; check Success on the response.
func (c *Client) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*models.TransactionResponse, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.TransactionResponse, error) {
		return s.SubmitTransaction(ctx, &models.SubmitTransactionRequest{Transaction: encoded})
	})
}

func (c *Client) SimulateTransaction(ctx context.Context, tx *ledger.Transaction) (*models.TransactionResponse, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.TransactionResponse, error) {
		return s.SimulateTransaction(ctx, &models.SimulateTransactionRequest{Transaction: encoded})
	})
}

func (c *Client) GetAccount(ctx context.Context, key solana.PublicKey) (*models.AccountResponse, error) {
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.AccountResponse, error) {
		return s.GetAccount(ctx, &models.GetAccountRequest{Address: key.String()})
	})
}

// GetAccountData returns the raw account, or nil when it does not exist.
func (c *Client) GetAccountData(ctx context.Context, key solana.PublicKey) (*ledger.Account, error) {
	resp, err := c.GetAccount(ctx, key)
	if err != nil || !resp.Exists {
		return nil, err
	}
	owner, err := solana.PublicKeyFromBase58(resp.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	lamports, err := strconv.ParseUint(resp.Lamports, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lamports: %w", err)
	}
	return &ledger.Account{Lamports: lamports, Owner: owner, Executable: resp.Executable, Data: data}, nil
}

func (c *Client) GetContinuation(ctx context.Context, key solana.PublicKey) (*models.ContinuationResponse, error) {
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.ContinuationResponse, error) {
		return s.GetContinuation(ctx, &models.GetContinuationRequest{Address: key.String()})
	})
}

// GetTokenBalance reads the owner's associated record of mint.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (*models.TokenBalanceResponse, error) {
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.TokenBalanceResponse, error) {
		return s.GetTokenBalance(ctx, &models.GetTokenBalanceRequest{Owner: owner.String(), Mint: mint.String()})
	})
}

func (c *Client) DeriveContinuation(ctx context.Context, owner, random solana.PublicKey) (*models.DeriveContinuationResponse, error) {
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.DeriveContinuationResponse, error) {
		return s.DeriveContinuation(ctx, &models.DeriveContinuationRequest{Owner: owner.String(), Random: random.String()})
	})
}

func (c *Client) ListPrograms(ctx context.Context) (*models.ListProgramsResponse, error) {
	return call(ctx, c, func(s *v1connect.LedgerServiceClient) (*models.ListProgramsResponse, error) {
		return s.ListPrograms(ctx)
	})
}
