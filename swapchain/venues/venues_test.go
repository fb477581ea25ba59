package venues_test

import (
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

func TestCalculateMinOutput(t *testing.T) {
	tests := []struct {
		name     string
		expected uint64
		bps      uint32
		want     uint64
	}{
		{name: "no slippage", expected: 1000, bps: 0, want: 1000},
		{name: "one percent", expected: 1000, bps: 100, want: 990},
		{name: "rounds down", expected: 999, bps: 50, want: 994},
		{name: "everything", expected: 1000, bps: 10000, want: 0},
		{name: "large amount", expected: 18_000_000_000_000_000_000, bps: 1, want: 17_998_200_000_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := venues.CalculateMinOutput(tt.expected, tt.bps)
			assert.NoError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}

	_, err := venues.CalculateMinOutput(1000, 10001)
	assert.Error(t, err)
}

func TestParseSlippage(t *testing.T) {
	bps, err := venues.ParseSlippage("0.5")
	assert.NoError(t, err)
	assert.Equal(t, bps, uint32(50))

	bps, err = venues.ParseSlippage("1")
	assert.NoError(t, err)
	assert.Equal(t, bps, uint32(100))

	_, err = venues.ParseSlippage("-1")
	assert.Error(t, err)
	_, err = venues.ParseSlippage("abc")
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	r := venues.Default()
	all := r.All()
	assert.Equal(t, len(all), 2)
	assert.Equal(t, all[0].Name(), "decimal_wrapper")
	assert.Equal(t, all[1].Name(), "stableswap")

	v, ok := r.LookupID(stableswap.ProgramID)
	assert.True(t, ok)
	assert.True(t, v.Native())

	_, err := venues.NewRegistry(venues.StableSwap(), venues.StableSwap())
	assert.Error(t, err)

	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	rt, err := ledger.NewRuntime(store)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	r.RegisterAll(rt)
	assert.Equal(t, len(rt.Programs()), 3)
}
