package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CallMetadata carries the fields required to start one speculative call
// chain: who the chain runs as, whose funds back it, and what it calls.
//
// Dest is the account recorded as the ultimate recipient of Value. It is
// usually the callee itself and defaults to To when left zero.
type CallMetadata struct {
	Escrow    common.Address // Custodial account the chain executes as
	Requester common.Address // Account whose balance backs every transfer
	To        common.Address // Contract to call
	Dest      common.Address // Recorded recipient of Value
	Value     *uint256.Int   // Value moved from Requester to Escrow before execution
	Data      []byte         // Call input
	GasLimit  uint64         // Gas for the whole chain
}

// Destination returns Dest, falling back to To.
func (m *CallMetadata) Destination() common.Address {
	if m.Dest == (common.Address{}) {
		return m.To
	}
	return m.Dest
}
