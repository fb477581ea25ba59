package ledger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "ledger").Logger()
}

// DefaultReplayCacheSize is how many recent unit ids are remembered.
const DefaultReplayCacheSize = 4096

// Receipt is the outcome of one atomic unit.
type Receipt struct {
	ID      string
	Logs    []string
	Events  [][]byte
	Changed []solana.PublicKey
	Err     error
}

// Succeeded reports whether the unit committed (or would have, for a simulation).
func (r *Receipt) Succeeded() bool {
	return r.Err == nil
}

// ProgramInfo describes a registered program.
type ProgramInfo struct {
	ID   solana.PublicKey
	Name string
}

// Runtime executes atomic units against a Store. Units are applied one at a
// time; a unit either commits every write or none.
type Runtime struct {
	mu       sync.Mutex
	store    *Store
	programs map[solana.PublicKey]Program
	names    map[solana.PublicKey]string
	seen     *lru.Cache
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	replayCacheSize int
	registerer      prometheus.Registerer
}

// WithReplayCacheSize sets how many unit ids are kept for duplicate detection.
func WithReplayCacheSize(n int) Option {
	return func(o *runtimeOptions) { o.replayCacheSize = n }
}

// WithMetrics registers runtime counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *runtimeOptions) { o.registerer = reg }
}

// NewRuntime returns a runtime with the system program registered.
func NewRuntime(store *Store, opts ...Option) (*Runtime, error) {
	o := runtimeOptions{replayCacheSize: DefaultReplayCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	seen, err := lru.New(o.replayCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay cache: %w", err)
	}
	r := &Runtime{
		store:    store,
		programs: make(map[solana.PublicKey]Program),
		names:    make(map[solana.PublicKey]string),
		seen:     seen,
		tracer:   otel.Tracer("github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"),
	}
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		r.metrics = m
	}
	r.Register(solana.SystemProgramID, "system", SystemProgram{})
	return r, nil
}

// Register makes program callable at id. Registering twice replaces the program.
func (r *Runtime) Register(id solana.PublicKey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
	log.Debug().Str("program", name).Str("id", id.String()).Msg("Registered program")
}

// Programs lists registered programs sorted by name.
func (r *Runtime) Programs() []ProgramInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProgramInfo, 0, len(r.names))
	for id, name := range r.names {
		out = append(out, ProgramInfo{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Store exposes the underlying store for read access.
func (r *Runtime) Store() *Store {
	return r.store
}

// GetAccount returns the committed account at key or nil.
func (r *Runtime) GetAccount(key solana.PublicKey) (*Account, error) {
	return r.store.Get(key)
}

// Execute verifies, runs and commits tx. The returned error is the unit
// failure, which is also recorded on the receipt.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if err := tx.Verify(); err != nil {
		r.metrics.observeUnit("rejected")
		return nil, err
	}
	id, err := tx.ID()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen.Contains(id) {
		r.metrics.observeUnit("rejected")
		return nil, ErrDuplicateTransaction
	}
	receipt, u := r.run(ctx, id, tx)
	if receipt.Err != nil {
		r.metrics.observeUnit("failed")
		log.Info().Str("id", id).Str("error", ErrorName(receipt.Err)).Msg("Unit rolled back")
		return receipt, receipt.Err
	}
	if err := r.store.Commit(u.changes()); err != nil {
		return nil, fmt.Errorf("failed to commit unit %s: %w", id, err)
	}
	r.seen.Add(id, struct{}{})
	r.metrics.observeUnit("committed")
	log.Info().Str("id", id).Int("instructions", len(tx.Instructions)).Int("changed", len(receipt.Changed)).Msg("Unit committed")
	return receipt, nil
}

// Simulate runs tx without verifying signatures and without committing.
// Signer flags on the instructions are taken at face value.
func (r *Runtime) Simulate(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	id, err := tx.ID()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, _ := r.run(ctx, id, tx)
	return receipt, nil
}

func (r *Runtime) run(ctx context.Context, id string, tx *Transaction) (*Receipt, *unit) {
	ctx, span := r.tracer.Start(ctx, "ledger.unit", trace.WithAttributes(
		attribute.String("unit.id", id),
		attribute.Int("unit.instructions", len(tx.Instructions)),
	))
	defer span.End()

	u := newUnit(ctx, r.store, r.programs)
	receipt := &Receipt{ID: id}
	err := r.runInstructions(u, tx)
	if err == nil {
		err = r.finalize(u)
	}
	receipt.Logs = u.logs
	receipt.Events = u.events
	if err != nil {
		receipt.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorName(err))
		return receipt, u
	}
	for key := range u.changes() {
		receipt.Changed = append(receipt.Changed, key)
	}
	sort.Slice(receipt.Changed, func(i, j int) bool {
		return receipt.Changed[i].String() < receipt.Changed[j].String()
	})
	return receipt, u
}

func (r *Runtime) runInstructions(u *unit, tx *Transaction) error {
	for i, ix := range tx.Instructions {
		if err := u.ctx.Err(); err != nil {
			return err
		}
		r.metrics.observeInstruction(r.names[ix.ProgramID])
		if err := u.invoke(1, ix); err != nil {
			return &InstructionError{Index: i, ProgramID: ix.ProgramID, Err: err}
		}
	}
	return nil
}

func (r *Runtime) finalize(u *unit) error {
	changed := u.changes()
	ids := make([]solana.PublicKey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		f, ok := r.programs[id].(Finalizer)
		if !ok {
			continue
		}
		if err := f.FinalizeUnit(u.ctx, changed); err != nil {
			u.log("Program %s finalize failed: %v", id, err)
			return err
		}
	}
	return nil
}
