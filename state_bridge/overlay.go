package statebridge

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/trie"
)

// Event is a contract event deposited during execution. Events live in the
// overlay scope that emitted them and disappear with it.
type Event struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Overlay is the provisional view of contract state used while a call chain
// executes. Writes land in the innermost open scope. Reads consult the scopes
// from the innermost outwards before falling back to the committed backend.
// The base scope reaches the backend only through Commit.
//
// An Overlay belongs to a single call chain and is not safe for concurrent use.
type Overlay struct {
	backend *Backend
	ledger  *Ledger
	scopes  []*scope
}

// NewOverlay returns an overlay on top of backend. If ledger is non-nil its
// balances are snapshotted and rewound together with discarded scopes.
func NewOverlay(backend *Backend, ledger *Ledger) *Overlay {
	return &Overlay{
		backend: backend,
		ledger:  ledger,
		scopes:  []*scope{newScope(nil)},
	}
}

// Backend returns the committed store underneath the overlay.
func (o *Overlay) Backend() *Backend { return o.backend }

// Ledger returns the ledger scoped together with the overlay.
func (o *Overlay) Ledger() *Ledger { return o.ledger }

// Depth returns the number of open scopes above the base.
func (o *Overlay) Depth() int { return len(o.scopes) - 1 }

func (o *Overlay) top() *scope { return o.scopes[len(o.scopes)-1] }

// Get returns the provisional value under key, or nil if there is none.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	storageReadCounter.Inc(1)
	for i := len(o.scopes) - 1; i >= 0; i-- {
		if c, ok := o.scopes[i].changes[string(key)]; ok {
			if c.deleted {
				return nil, nil
			}
			return c.value, nil
		}
	}
	v, ok, err := o.backend.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// Put records value under key in the innermost scope.
func (o *Overlay) Put(key, value []byte) {
	storageWriteCounter.Inc(1)
	v := common.CopyBytes(value)
	if v == nil {
		v = []byte{}
	}
	o.top().changes[string(key)] = change{value: v}
}

// Delete records the removal of key in the innermost scope.
func (o *Overlay) Delete(key []byte) {
	storageWriteCounter.Inc(1)
	o.top().changes[string(key)] = change{deleted: true}
}

// DepositEvent appends ev to the innermost scope.
func (o *Overlay) DepositEvent(ev Event) {
	s := o.top()
	s.events = append(s.events, ev)
}

// Events returns the events that reached the base scope.
func (o *Overlay) Events() []Event {
	return append([]Event(nil), o.scopes[0].events...)
}

// RunScoped runs f inside a new nested scope. The scope is discarded when f
// fails or when discard is set, and merged into its parent otherwise. The
// returned error is f's, untouched; discarded tells which way the scope went.
func (o *Overlay) RunScoped(discard bool, f func() error) (discarded bool, err error) {
	s := o.open()
	if err = f(); err != nil || discard {
		o.discard(s)
		return true, err
	}
	o.merge(s)
	return false, nil
}

// Commit writes the base scope to the backend and clears it, together with
// the events it collected. It must not be called while scopes are open.
func (o *Overlay) Commit() error {
	if o.Depth() != 0 {
		panic("statebridge: commit with open scopes")
	}
	base := o.scopes[0]
	if err := o.backend.write(base.changes); err != nil {
		return err
	}
	log.Debug("Committed overlay", "changes", len(base.changes), "events", len(base.events))
	o.scopes[0] = newScope(nil)
	return nil
}

// Collect returns the provisional contents of every key under prefix.
func (o *Overlay) Collect(prefix []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := o.backend.Iterate(prefix, func(k, v []byte) bool {
		out[string(k)] = common.CopyBytes(v)
		return true
	})
	if err != nil {
		return nil, err
	}
	for _, s := range o.scopes {
		for k, c := range s.changes {
			if !bytes.HasPrefix([]byte(k), prefix) {
				continue
			}
			if c.deleted {
				delete(out, k)
			} else {
				out[k] = c.value
			}
		}
	}
	return out, nil
}

// StorageRoot returns the Merkle-Patricia root of the provisional contents of
// the storage namespace trieID. Empty values do not contribute to the root.
func (o *Overlay) StorageRoot(trieID []byte) (common.Hash, error) {
	prefix := StoragePrefix(trieID)
	entries, err := o.Collect(prefix)
	if err != nil {
		return common.Hash{}, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	st := trie.NewStackTrie(nil)
	for _, k := range keys {
		v := entries[k]
		if len(v) == 0 {
			continue
		}
		if err := st.Update([]byte(k)[len(prefix):], v); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
