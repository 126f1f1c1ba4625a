package statebridge

import (
	"runtime"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// BatchKey identifies a value to warm into the backend read cache. A zero Slot
// primes only the contract info of Address.
type BatchKey struct {
	Address common.Address
	TrieID  []byte
	Slot    common.Hash
}

func (k BatchKey) keys() [][]byte {
	out := [][]byte{ContractKey(k.Address)}
	if k.Slot != (common.Hash{}) && len(k.TrieID) == TrieIDLength {
		out = append(out, StorageKey(k.TrieID, k.Slot))
	}
	return out
}

// Prefetch loads the committed values of keys into the read cache so that the
// following execution resolves them without touching the database. Missing
// keys are ignored and the call is a no-op if the slice is empty. Lookups run
// concurrently, bounded by the number of CPUs.
func (b *Backend) Prefetch(keys []BatchKey) (loaded int) {
	if b == nil || len(keys) == 0 {
		return 0
	}
	var (
		g     errgroup.Group
		count atomic.Int64
	)
	g.SetLimit(runtime.NumCPU())
	for _, k := range keys {
		for _, key := range k.keys() {
			g.Go(func() error {
				if _, ok, err := b.Get(key); err == nil && ok {
					count.Add(1)
				}
				return nil
			})
		}
	}
	g.Wait()
	return int(count.Load())
}
