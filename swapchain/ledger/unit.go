package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxCallDepth bounds nested cross-program invocations. The top level
// instruction runs at depth 1.
const MaxCallDepth = 4

// unit is the working overlay of one atomic unit. Nothing reaches the store
// until the whole unit succeeds.
type unit struct {
	ctx      context.Context
	store    *Store
	programs map[solana.PublicKey]Program

	accounts map[solana.PublicKey]*Account
	original map[solana.PublicKey]*Account
	order    []solana.PublicKey

	// stack holds the programs currently executing, outermost first.
	stack []solana.PublicKey

	logs       []string
	events     [][]byte
	returnData returnData
}

type returnData struct {
	programID solana.PublicKey
	data      []byte
}

func newUnit(ctx context.Context, store *Store, programs map[solana.PublicKey]Program) *unit {
	return &unit{
		ctx:      ctx,
		store:    store,
		programs: programs,
		accounts: make(map[solana.PublicKey]*Account),
		original: make(map[solana.PublicKey]*Account),
	}
}

// load returns the working copy of key, reading it from the store on first use.
// Missing accounts come back empty and owned by the system program.
func (u *unit) load(key solana.PublicKey) (*Account, error) {
	if acc, ok := u.accounts[key]; ok {
		return acc, nil
	}
	stored, err := u.store.Get(key)
	if err != nil {
		return nil, err
	}
	u.original[key] = stored
	u.order = append(u.order, key)
	acc := stored.Clone()
	if acc == nil {
		acc = &Account{Owner: solana.SystemProgramID}
	}
	u.accounts[key] = acc
	return acc, nil
}

// changes returns every account whose state differs from what was loaded.
func (u *unit) changes() map[solana.PublicKey]*Account {
	out := make(map[solana.PublicKey]*Account)
	for _, key := range u.order {
		cur := u.accounts[key]
		orig := u.original[key]
		switch {
		case orig == nil && cur.IsEmpty():
		case orig == nil || !orig.Equal(cur):
			out[key] = cur
		}
	}
	return out
}

func (u *unit) log(format string, args ...any) {
	u.logs = append(u.logs, fmt.Sprintf(format, args...))
}

// frame is one program invocation together with the pre-state it is checked against.
type frame struct {
	programID solana.PublicKey
	infos     []*AccountInfo
	keys      []solana.PublicKey
	pre       map[solana.PublicKey]*Account
	writable  map[solana.PublicKey]bool
	signer    map[solana.PublicKey]bool
}

func (u *unit) newFrame(programID solana.PublicKey, metas []*solana.AccountMeta) (*frame, error) {
	f := &frame{
		programID: programID,
		infos:     make([]*AccountInfo, len(metas)),
		writable:  make(map[solana.PublicKey]bool),
		signer:    make(map[solana.PublicKey]bool),
	}
	for i, m := range metas {
		acc, err := u.load(m.PublicKey)
		if err != nil {
			return nil, err
		}
		f.infos[i] = &AccountInfo{Key: m.PublicKey, IsSigner: m.IsSigner, IsWritable: m.IsWritable, Account: acc}
		if _, ok := f.writable[m.PublicKey]; !ok {
			f.keys = append(f.keys, m.PublicKey)
		}
		f.writable[m.PublicKey] = f.writable[m.PublicKey] || m.IsWritable
		f.signer[m.PublicKey] = f.signer[m.PublicKey] || m.IsSigner
	}
	// Duplicated keys share one working copy, so privileges are the union.
	for _, info := range f.infos {
		info.IsWritable = f.writable[info.Key]
		info.IsSigner = f.signer[info.Key]
	}
	f.snapshot(u)
	return f, nil
}

func (f *frame) snapshot(u *unit) {
	f.pre = make(map[solana.PublicKey]*Account, len(f.keys))
	for _, key := range f.keys {
		f.pre[key] = u.accounts[key].Clone()
	}
}

// verify checks that the program only changed what it was allowed to change
// since the last snapshot.
func (f *frame) verify(u *unit) error {
	var before, after uint64
	for _, key := range f.keys {
		pre := f.pre[key]
		post := u.accounts[key]
		before += pre.Lamports
		after += post.Lamports

		if !f.writable[key] {
			switch {
			case !pre.Owner.Equals(post.Owner):
				return ErrModifiedProgramID
			case pre.Lamports != post.Lamports:
				return ErrReadonlyLamportChange
			case !bytes.Equal(pre.Data, post.Data):
				return ErrReadonlyDataModified
			}
			continue
		}
		owned := pre.Owner.Equals(f.programID)
		if !pre.Owner.Equals(post.Owner) && !owned {
			return ErrModifiedProgramID
		}
		if !bytes.Equal(pre.Data, post.Data) && !owned {
			return ErrExternalAccountDataModified
		}
		if post.Lamports < pre.Lamports && !owned {
			return ErrExternalAccountLamportSpend
		}
		if pre.Executable != post.Executable {
			return ErrModifiedProgramID
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func (u *unit) invoke(depth int, ix Instruction) error {
	if depth > MaxCallDepth {
		return ErrCallDepth
	}
	program, ok := u.programs[ix.ProgramID]
	if !ok {
		return ErrProgramNotFound
	}
	if err := u.checkReentrancy(ix.ProgramID); err != nil {
		u.log("Program %s failed: %v", ix.ProgramID, err)
		return err
	}
	f, err := u.newFrame(ix.ProgramID, ix.Accounts)
	if err != nil {
		return err
	}
	u.stack = append(u.stack, ix.ProgramID)
	defer func() { u.stack = u.stack[:len(u.stack)-1] }()
	u.returnData = returnData{}
	u.log("Program %s invoke [%d]", ix.ProgramID, depth)
	ctx := &InvokeContext{unit: u, frame: f, depth: depth}
	if err := program.Process(ctx, f.infos, ix.Data); err != nil {
		u.log("Program %s failed: %v", ix.ProgramID, err)
		return err
	}
	if err := f.verify(u); err != nil {
		u.log("Program %s failed: %v", ix.ProgramID, err)
		return err
	}
	u.log("Program %s success", ix.ProgramID)
	return nil
}

// checkReentrancy rejects a call into a program that is already running,
// unless the program is calling itself directly.
func (u *unit) checkReentrancy(programID solana.PublicKey) error {
	n := len(u.stack)
	if n > 0 && u.stack[n-1].Equals(programID) {
		return nil
	}
	for _, running := range u.stack {
		if running.Equals(programID) {
			return fmt.Errorf("%w: %s", ErrReentrancy, programID)
		}
	}
	return nil
}

func (u *unit) emit(data []byte) {
	u.events = append(u.events, append([]byte(nil), data...))
	u.log("Program data: %s", base64.StdEncoding.EncodeToString(data))
}
