package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return k
}

func newRuntime(t *testing.T, opts ...ledger.Option) (*ledger.Runtime, *ledger.Store) {
	t.Helper()
	store, err := ledger.OpenMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	rt, err := ledger.NewRuntime(store, opts...)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	return rt, store
}

func fund(t *testing.T, store *ledger.Store, key solana.PublicKey, lamports uint64) {
	t.Helper()
	if err := store.Put(key, &ledger.Account{Lamports: lamports, Owner: solana.SystemProgramID}); err != nil {
		t.Fatalf("failed to fund %s: %v", key, err)
	}
}

func signed(t *testing.T, nonce uint64, keys []solana.PrivateKey, ixs ...ledger.Instruction) *ledger.Transaction {
	t.Helper()
	tx := &ledger.Transaction{Nonce: nonce, Instructions: ixs}
	if err := tx.Sign(keys...); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return tx
}

func balance(t *testing.T, rt *ledger.Runtime, key solana.PublicKey) uint64 {
	t.Helper()
	acc, err := rt.GetAccount(key)
	if err != nil {
		t.Fatalf("failed to read %s: %v", key, err)
	}
	if acc == nil {
		return 0
	}
	return acc.Lamports
}

func TestTransferCommits(t *testing.T) {
	rt, store := newRuntime(t)
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)

	receipt, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 400)))
	assert.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, len(receipt.Changed), 2)
	assert.Equal(t, balance(t, rt, alice.PublicKey()), uint64(600))
	assert.Equal(t, balance(t, rt, bob.PublicKey()), uint64(400))
}

func TestFailedUnitRollsBackEarlierInstructions(t *testing.T) {
	rt, store := newRuntime(t)
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 400),
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 700),
	))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	var ixErr *ledger.InstructionError
	assert.True(t, errors.As(err, &ixErr))
	assert.Equal(t, ixErr.Index, 1)
	assert.Equal(t, balance(t, rt, alice.PublicKey()), uint64(1_000))
	assert.Equal(t, balance(t, rt, bob.PublicKey()), uint64(0))
}

func TestDuplicateUnitRejected(t *testing.T) {
	rt, store := newRuntime(t)
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)
	tx := signed(t, 7, []solana.PrivateKey{alice}, ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 1))

	_, err := rt.Execute(context.Background(), tx)
	assert.NoError(t, err)
	_, err = rt.Execute(context.Background(), tx)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateTransaction))
	assert.Equal(t, balance(t, rt, bob.PublicKey()), uint64(1))
}

func TestSignatureRequired(t *testing.T) {
	rt, store := newRuntime(t)
	alice, mallory, bob := newKey(t), newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)

	tx := &ledger.Transaction{Instructions: []ledger.Instruction{ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 1)}}
	assert.Error(t, tx.Sign(mallory))

	sig, err := mallory.Sign([]byte("not the message"))
	assert.NoError(t, err)
	tx.Signatures = []solana.Signature{sig}
	_, err = rt.Execute(context.Background(), tx)
	assert.True(t, errors.Is(err, ledger.ErrSignatureFailure))
}

func TestTransactionRoundTrip(t *testing.T) {
	alice, bob := newKey(t), newKey(t)
	tx := signed(t, 42, []solana.PrivateKey{alice}, ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 5))
	raw, err := tx.MarshalBinary()
	assert.NoError(t, err)

	decoded, err := ledger.UnmarshalTransaction(raw)
	assert.NoError(t, err)
	assert.NoError(t, decoded.Verify())

	id1, _ := tx.ID()
	id2, _ := decoded.ID()
	assert.Equal(t, id1, id2)
}

func TestSimulateDoesNotCommit(t *testing.T) {
	rt, store := newRuntime(t)
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)

	tx := &ledger.Transaction{Instructions: []ledger.Instruction{ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 10)}}
	receipt, err := rt.Simulate(context.Background(), tx)
	assert.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, balance(t, rt, bob.PublicKey()), uint64(0))
}

func TestForeignProgramCannotTouchAccounts(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	fund(t, store, alice.PublicKey(), 1_000)
	thief := ledger.ProgramIDFromName("thief")
	rt.Register(thief, "thief", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		accounts[0].Lamports -= 10
		accounts[1].Lamports += 10
		return nil
	}))
	sink := newKey(t).PublicKey()

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(thief, []*solana.AccountMeta{
			solana.NewAccountMeta(alice.PublicKey(), true, true),
			solana.NewAccountMeta(sink, true, false),
		}, nil)))
	assert.True(t, errors.Is(err, ledger.ErrExternalAccountLamportSpend))
	assert.Equal(t, balance(t, rt, alice.PublicKey()), uint64(1_000))
}

func TestReadonlyAccountsAreChecked(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	owner := ledger.ProgramIDFromName("writer")
	target := newKey(t).PublicKey()
	if err := store.Put(target, &ledger.Account{Lamports: 10, Owner: owner, Data: make([]byte, 4)}); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	rt.Register(owner, "writer", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		accounts[1].Data[0] = 1
		return nil
	}))

	ix := func(writable bool) ledger.Instruction {
		return ledger.NewInstruction(owner, []*solana.AccountMeta{
			solana.NewAccountMeta(alice.PublicKey(), false, true),
			solana.NewAccountMeta(target, writable, false),
		}, nil)
	}
	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice}, ix(false)))
	assert.True(t, errors.Is(err, ledger.ErrReadonlyDataModified))

	_, err = rt.Execute(context.Background(), signed(t, 2, []solana.PrivateKey{alice}, ix(true)))
	assert.NoError(t, err)
	acc, err := rt.GetAccount(target)
	assert.NoError(t, err)
	assert.Equal(t, acc.Data[0], byte(1))
}

func TestInvokeSignedWithProgramAddress(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	fund(t, store, alice.PublicKey(), 10_000_000)
	vaultProgram := ledger.ProgramIDFromName("vault")
	vault, bump, err := ledger.FindProgramAddress([][]byte{[]byte("vault")}, vaultProgram)
	assert.NoError(t, err)

	rt.Register(vaultProgram, "vault", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		payer, vaultInfo := accounts[0], accounts[1]
		space := uint64(16)
		ix := ledger.CreateAccount(payer.Key, vaultInfo.Key, ledger.MinimumBalance(int(space)), space, ctx.ProgramID())
		if err := ctx.InvokeSigned(ix, [][]byte{[]byte("vault"), {bump}}); err != nil {
			return err
		}
		vaultInfo.Data[0] = 7
		return nil
	}))

	_, err = rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(vaultProgram, []*solana.AccountMeta{
			solana.NewAccountMeta(alice.PublicKey(), true, true),
			solana.NewAccountMeta(vault, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		}, nil)))
	assert.NoError(t, err)

	acc, err := rt.GetAccount(vault)
	assert.NoError(t, err)
	assert.Equal(t, acc.Owner, vaultProgram)
	assert.Equal(t, acc.Lamports, ledger.MinimumBalance(16))
	assert.Equal(t, acc.Data[0], byte(7))
}

func TestInvokeCannotEscalateSigner(t *testing.T) {
	rt, store := newRuntime(t)
	alice, victim := newKey(t), newKey(t)
	fund(t, store, victim.PublicKey(), 1_000)
	relay := ledger.ProgramIDFromName("relay")
	rt.Register(relay, "relay", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		return ctx.Invoke(ledger.Transfer(accounts[1].Key, accounts[0].Key, 500))
	}))

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(relay, []*solana.AccountMeta{
			solana.NewAccountMeta(alice.PublicKey(), true, true),
			solana.NewAccountMeta(victim.PublicKey(), true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		}, nil)))
	assert.True(t, errors.Is(err, ledger.ErrPrivilegeEscalation))
	assert.Equal(t, balance(t, rt, victim.PublicKey()), uint64(1_000))
}

func TestCallDepthLimit(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	fund(t, store, alice.PublicKey(), 1)
	loop := ledger.ProgramIDFromName("loop")
	rt.Register(loop, "loop", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		return ctx.Invoke(ledger.NewInstruction(loop, []*solana.AccountMeta{accounts[0].Meta()}, nil))
	}))

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(loop, []*solana.AccountMeta{solana.NewAccountMeta(alice.PublicKey(), false, true)}, nil)))
	assert.True(t, errors.Is(err, ledger.ErrCallDepth))
}

func TestReentrantInvokeRejected(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	fund(t, store, alice.PublicKey(), 1)
	outer := ledger.ProgramIDFromName("outer")
	inner := ledger.ProgramIDFromName("inner")
	calls := 0
	rt.Register(outer, "outer", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		calls++
		if len(data) > 0 {
			return nil
		}
		return ctx.Invoke(ledger.NewInstruction(inner, []*solana.AccountMeta{accounts[0].Meta()}, nil))
	}))
	rt.Register(inner, "inner", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		return ctx.Invoke(ledger.NewInstruction(outer, []*solana.AccountMeta{accounts[0].Meta()}, []byte{1}))
	}))

	receipt, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(outer, []*solana.AccountMeta{solana.NewAccountMeta(alice.PublicKey(), false, true)}, nil)))
	assert.True(t, errors.Is(err, ledger.ErrReentrancy))
	assert.Equal(t, ledger.ErrorName(err), "ReentrancyNotAllowed")
	assert.Equal(t, calls, 1)
	assert.NotNil(t, receipt)
}

func TestDirectSelfInvokeAllowed(t *testing.T) {
	rt, store := newRuntime(t)
	alice := newKey(t)
	fund(t, store, alice.PublicKey(), 1)
	self := ledger.ProgramIDFromName("self")
	depths := []int{}
	rt.Register(self, "self", ledger.ProgramFunc(func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
		depths = append(depths, ctx.Depth())
		if len(data) > 0 {
			return nil
		}
		return ctx.Invoke(ledger.NewInstruction(self, []*solana.AccountMeta{accounts[0].Meta()}, []byte{1}))
	}))

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.NewInstruction(self, []*solana.AccountMeta{solana.NewAccountMeta(alice.PublicKey(), false, true)}, nil)))
	assert.NoError(t, err)
	assert.DeepEqual(t, depths, []int{1, 2})
}

type rejectAll struct{ ledger.ProgramFunc }

func (rejectAll) FinalizeUnit(ctx context.Context, changed map[solana.PublicKey]*ledger.Account) error {
	if len(changed) > 0 {
		return ledger.ErrInvalidAccountData
	}
	return nil
}

func TestFinalizerCanRejectUnit(t *testing.T) {
	rt, store := newRuntime(t)
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 100)
	guard := ledger.ProgramIDFromName("guard")
	rt.Register(guard, "guard", rejectAll{})

	receipt, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 10)))
	assert.True(t, errors.Is(err, ledger.ErrInvalidAccountData))
	assert.NotNil(t, receipt)
	assert.Equal(t, balance(t, rt, bob.PublicKey()), uint64(0))
}

func TestMetricsCountUnits(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt, store := newRuntime(t, ledger.WithMetrics(reg))
	alice, bob := newKey(t), newKey(t)
	fund(t, store, alice.PublicKey(), 100)

	_, err := rt.Execute(context.Background(), signed(t, 1, []solana.PrivateKey{alice},
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 10)))
	assert.NoError(t, err)
	_, _ = rt.Execute(context.Background(), signed(t, 2, []solana.PrivateKey{alice},
		ledger.Transfer(alice.PublicKey(), bob.PublicKey(), 1_000)))

	count, err := testutil.GatherAndCount(reg, "swapchain_units_total")
	assert.NoError(t, err)
	assert.Equal(t, count, 2)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := ledger.OpenStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	key := newKey(t).PublicKey()
	assert.NoError(t, store.Put(key, &ledger.Account{Lamports: 9, Owner: solana.SystemProgramID, Data: []byte{1, 2}}))
	assert.NoError(t, store.PutMeta("genesis", []byte("done")))
	assert.NoError(t, store.Close())

	store, err = ledger.OpenStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()
	acc, err := store.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, acc.Lamports, uint64(9))
	assert.DeepEqual(t, acc.Data, []byte{1, 2})

	v, ok, err := store.GetMeta("genesis")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, string(v), "done")

	assert.NoError(t, store.Put(key, &ledger.Account{Owner: solana.SystemProgramID}))
	acc, err = store.Get(key)
	assert.NoError(t, err)
	assert.True(t, acc == nil)
}
