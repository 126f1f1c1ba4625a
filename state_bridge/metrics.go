package statebridge

import "github.com/ethereum/go-ethereum/metrics"

var (
	cacheHitCounter  = metrics.NewRegisteredCounter("escrow/backend/cache/hit", nil)
	cacheMissCounter = metrics.NewRegisteredCounter("escrow/backend/cache/miss", nil)

	backendCommitTimer = metrics.NewRegisteredTimer("escrow/backend/commit", nil)

	storageReadCounter  = metrics.NewRegisteredCounter("escrow/overlay/read", nil)
	storageWriteCounter = metrics.NewRegisteredCounter("escrow/overlay/write", nil)

	scopeMergeCounter   = metrics.NewRegisteredCounter("escrow/overlay/scope/merge", nil)
	scopeDiscardCounter = metrics.NewRegisteredCounter("escrow/overlay/scope/discard", nil)

	durableReplayMeter = metrics.NewRegisteredMeter("escrow/ledger/replay", nil)
)

// ResetProfileCounters zeros the backend cache counters.
func ResetProfileCounters() {
	cacheHitCounter.Clear()
	cacheMissCounter.Clear()
}

// ProfileCounters returns (cacheHits, cacheMisses) since the last reset.
func ProfileCounters() (int64, int64) {
	return cacheHitCounter.Snapshot().Count(), cacheMissCounter.Snapshot().Count()
}

// ScopeCounters returns how many overlay scopes were merged and discarded.
func ScopeCounters() (merged, discarded int64) {
	return scopeMergeCounter.Snapshot().Count(), scopeDiscardCounter.Snapshot().Count()
}
