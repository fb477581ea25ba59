package router_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/actioniface"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues/stableswap"
)

const ownerLamports = 1_000_000_000

var stubID = ledger.ProgramIDFromName("stub-venue")

// rate converts amount_in of any mint into amount_in*num/den of the output
// mint. shortfall is withheld from what the venue reports; drain is burnt
// from the output record after paying out.
type rate struct {
	num, den  uint64
	shortfall uint64
	drain     uint64
}

// stubVenue is a generic interface venue that burns the input and mints the
// output at a fixed rate per output mint. It can under-deliver on purpose.
type stubVenue struct {
	authority   solana.PublicKey
	bump        uint8
	rates       map[solana.PublicKey]rate
	ignoreFloor bool
	calls       int
	actions     []uint16
}

func newStubVenue(t *testing.T) *stubVenue {
	t.Helper()
	authority, bump, err := ledger.FindProgramAddress([][]byte{[]byte("authority")}, stubID)
	if err != nil {
		t.Fatalf("failed to derive stub authority: %v", err)
	}
	return &stubVenue{authority: authority, bump: bump, rates: make(map[solana.PublicKey]rate)}
}

// Process expects the interface accounts followed by [input_mint, output_mint, authority].
func (s *stubVenue) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := actioniface.Decode(data)
	if err != nil {
		return err
	}
	accts, err := actioniface.Parse(accounts)
	if err != nil {
		return err
	}
	if len(accts.Remaining) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	inMint, outMint, authority := accts.Remaining[0], accts.Remaining[1], accts.Remaining[2]
	s.calls++
	s.actions = append(s.actions, args.Action)

	r, ok := s.rates[outMint.Key]
	if !ok {
		r = rate{num: 1, den: 1}
	}
	out := args.AmountIn * r.num / r.den
	if out < args.MinimumAmountOut && !s.ignoreFloor {
		return actioniface.ErrSlippageExceeded
	}
	if err := ctx.Invoke(token.Burn(accts.Input.Key, inMint.Key, accts.UserAuthority.Key, args.AmountIn)); err != nil {
		return err
	}
	if paid := out - r.shortfall; paid > 0 {
		seeds := [][]byte{[]byte("authority"), {s.bump}}
		if err := ctx.InvokeSigned(token.MintTo(outMint.Key, accts.Output.Key, authority.Key, paid), seeds); err != nil {
			return err
		}
	}
	if r.drain > 0 {
		if err := ctx.Invoke(token.Burn(accts.Output.Key, outMint.Key, accts.UserAuthority.Key, r.drain)); err != nil {
			return err
		}
	}
	var ret [8]byte
	binary.LittleEndian.PutUint64(ret[:], out)
	ctx.SetReturnData(ret[:])
	return nil
}

type env struct {
	t      *testing.T
	rt     *ledger.Runtime
	store  *ledger.Store
	router *router.Program
	venue  *stubVenue
	owner  solana.PrivateKey
	nonce  uint64
}

func newEnv(t *testing.T, opts ...router.Option) *env {
	t.Helper()
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	rt, err := ledger.NewRuntime(store)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	e := &env{
		t:      t,
		rt:     rt,
		store:  store,
		router: router.New(router.ProgramID, opts...),
		venue:  newStubVenue(t),
	}
	rt.Register(token.ProgramID, "token", token.Program{})
	rt.Register(token.AssociatedProgramID, "associated-token", token.AssociatedProgram{})
	rt.Register(stableswap.ProgramID, "stableswap", stableswap.Program{})
	rt.Register(router.ProgramID, "router", e.router)
	rt.Register(stubID, "stub-venue", e.venue)

	e.owner = e.wallet()
	return e
}

func (e *env) wallet() solana.PrivateKey {
	e.t.Helper()
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		e.t.Fatalf("failed to generate key: %v", err)
	}
	if err := e.store.Put(k.PublicKey(), &ledger.Account{Lamports: ownerLamports, Owner: solana.SystemProgramID}); err != nil {
		e.t.Fatalf("failed to fund wallet: %v", err)
	}
	return k
}

func (e *env) mint(name string) solana.PublicKey {
	e.t.Helper()
	key := ledger.ProgramIDFromName("mint:" + name)
	acc := token.NewMintAccount(token.Mint{Authority: e.venue.authority, Supply: 1 << 40, Decimals: 6, Initialized: true})
	if err := e.store.Put(key, acc); err != nil {
		e.t.Fatalf("failed to create mint: %v", err)
	}
	return key
}

// record creates a token account for mint owned by owner at a name derived key.
func (e *env) record(name string, owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	e.t.Helper()
	key := ledger.ProgramIDFromName("record:" + name)
	acc := token.NewTokenAccount(token.Account{Mint: mint, Owner: owner, Amount: amount, State: token.AccountInitialized})
	if err := e.store.Put(key, acc); err != nil {
		e.t.Fatalf("failed to create record: %v", err)
	}
	return key
}

func (e *env) random() solana.PublicKey {
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		e.t.Fatalf("failed to generate key: %v", err)
	}
	return k.PublicKey()
}

func (e *env) run(extra []solana.PrivateKey, ixs ...ledger.Instruction) (*ledger.Receipt, error) {
	e.t.Helper()
	e.nonce++
	tx := &ledger.Transaction{Nonce: e.nonce, Instructions: ixs}
	if err := tx.Sign(append([]solana.PrivateKey{e.owner}, extra...)...); err != nil {
		e.t.Fatalf("failed to sign: %v", err)
	}
	return e.rt.Execute(context.Background(), tx)
}

func (e *env) amount(key solana.PublicKey) uint64 {
	e.t.Helper()
	acc, err := e.rt.GetAccount(key)
	if err != nil || acc == nil {
		e.t.Fatalf("missing record %s: %v", key, err)
	}
	ta, err := token.DecodeAccount(acc.Data)
	if err != nil {
		e.t.Fatalf("failed to decode %s: %v", key, err)
	}
	return ta.Amount
}

func (e *env) lamports(key solana.PublicKey) uint64 {
	e.t.Helper()
	acc, err := e.rt.GetAccount(key)
	if err != nil {
		e.t.Fatalf("failed to read %s: %v", key, err)
	}
	if acc == nil {
		return 0
	}
	return acc.Lamports
}

func (e *env) continuation(key solana.PublicKey) *router.Continuation {
	e.t.Helper()
	acc, err := e.rt.GetAccount(key)
	if err != nil || acc == nil {
		e.t.Fatalf("missing continuation %s: %v", key, err)
	}
	c, err := router.DecodeContinuation(acc.Data)
	if err != nil {
		e.t.Fatalf("failed to decode continuation: %v", err)
	}
	return c
}

// stubHop routes input to output through the stub venue.
func (e *env) stubHop(input, output, inMint, outMint solana.PublicKey) router.ADAccounts {
	return router.ADAccounts{
		Input:  input,
		Output: output,
		Remaining: []*solana.AccountMeta{
			solana.NewAccountMeta(inMint, true, false),
			solana.NewAccountMeta(outMint, true, false),
			solana.NewAccountMeta(e.venue.authority, false, false),
		},
	}
}

func (e *env) hopPrefix(cont solana.PublicKey) router.HopAccounts {
	return router.HopAccounts{Continuation: cont, SwapProgram: stubID, Owner: e.owner.PublicKey()}
}

func decodeEvents(t *testing.T, receipt *ledger.Receipt) []any {
	t.Helper()
	var out []any
	for _, raw := range receipt.Events {
		ev, ok, err := router.DecodeEvent(raw)
		if err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if ok {
			out = append(out, ev)
		}
	}
	return out
}
