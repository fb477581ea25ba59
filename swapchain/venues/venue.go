// Package venues defines what the node needs to know about an exchange
// program and the common helpers shared by callers building chains.
// Each venue (the stable swap pool, the decimal wrapper, ...) implements Venue.
package venues

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/decimalwrapper"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

// Venue is an exchange program that can be registered with a runtime.
type Venue interface {
	// Name is the registration name, e.g. "stableswap".
	Name() string

	// ProgramID is the address the program runs at.
	ProgramID() solana.PublicKey

	// Program returns the program implementation.
	Program() ledger.Program

	// Native reports whether the router drives the venue through SS actions.
	// Other venues are called through the generic action interface.
	Native() bool
}

type venue struct {
	name    string
	id      solana.PublicKey
	program ledger.Program
	native  bool
}

func (v venue) Name() string                { return v.name }
func (v venue) ProgramID() solana.PublicKey { return v.id }
func (v venue) Program() ledger.Program     { return v.program }
func (v venue) Native() bool                { return v.native }

// StableSwap is the native pool venue.
func StableSwap() Venue {
	return venue{name: "stableswap", id: stableswap.ProgramID, program: stableswap.Program{}, native: true}
}

// DecimalWrapper is the wrapped token venue.
func DecimalWrapper() Venue {
	return venue{name: "decimal_wrapper", id: decimalwrapper.ProgramID, program: decimalwrapper.Program{}}
}

// Registry looks venues up by name or address.
type Registry struct {
	byName map[string]Venue
	byID   map[solana.PublicKey]Venue
}

// NewRegistry indexes venues. Duplicate names or addresses are rejected.
func NewRegistry(vs ...Venue) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Venue, len(vs)),
		byID:   make(map[solana.PublicKey]Venue, len(vs)),
	}
	for _, v := range vs {
		if _, ok := r.byName[v.Name()]; ok {
			return nil, fmt.Errorf("duplicate venue name %q", v.Name())
		}
		if _, ok := r.byID[v.ProgramID()]; ok {
			return nil, fmt.Errorf("duplicate venue program %s", v.ProgramID())
		}
		r.byName[v.Name()] = v
		r.byID[v.ProgramID()] = v
	}
	return r, nil
}

// Default returns the venues shipped with the node.
func Default() *Registry {
	r, err := NewRegistry(StableSwap(), DecimalWrapper())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (Venue, bool) {
	v, ok := r.byName[name]
	return v, ok
}

func (r *Registry) LookupID(id solana.PublicKey) (Venue, bool) {
	v, ok := r.byID[id]
	return v, ok
}

// All returns every venue sorted by name.
func (r *Registry) All() []Venue {
	out := make([]Venue, 0, len(r.byName))
	for _, v := range r.byName {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RegisterAll registers every venue with rt.
func (r *Registry) RegisterAll(rt *ledger.Runtime) {
	for _, v := range r.All() {
		rt.Register(v.ProgramID(), v.Name(), v.Program())
	}
}
