package core

import "github.com/ethereum/go-ethereum/metrics"

var (
	escrowCallTimer     = metrics.NewRegisteredTimer("escrow/call", nil)
	escrowCallMeter     = metrics.NewRegisteredMeter("escrow/call/frames", nil)
	escrowTransferMeter = metrics.NewRegisteredMeter("escrow/transfer", nil)
	solvencyRejectMeter = metrics.NewRegisteredMeter("escrow/transfer/rejected", nil)

	realCallMeter = metrics.NewRegisteredMeter("escrow/real/call", nil)

	rentCollectedMeter = metrics.NewRegisteredMeter("escrow/rent/collected", nil)
	evictionMeter      = metrics.NewRegisteredMeter("escrow/rent/evicted", nil)
)
