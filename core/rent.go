package core

import (
	"github.com/clydemeng/bsc-escrow/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// LookupAndCollectRent returns the contract info of addr after charging the
// rent accrued since its last payment up to block.
//
// Rent is blocks elapsed × RentByteFee × StorageSize, bounded by the rent
// allowance. A contract that cannot pay, either because the allowance runs
// out or because paying would leave its balance under the subsistence
// threshold, is evicted and left as a tombstone.
func (d *Directory) LookupAndCollectRent(addr common.Address, block uint64) (*ContractInfo, error) {
	info, err := d.Lookup(addr)
	if err != nil || info == nil || info.Alive == nil {
		return info, err
	}
	alive := info.Alive
	if block <= alive.DeductBlock {
		return info, nil
	}
	rent := rentDue(block-alive.DeductBlock, d.config.RentByteFee, alive.StorageSize)
	if rent.IsZero() {
		alive.DeductBlock = block
		return info, d.Put(addr, info)
	}
	ledger := d.overlay.Ledger()
	due := rent
	if alive.RentAllowance.Lt(due) {
		due = alive.RentAllowance
	}
	balance := ledger.Balance(addr)
	if alive.RentAllowance.Lt(rent) || saturatingSub(balance, due).Lt(d.config.SubsistenceThreshold()) {
		return d.evict(addr, alive)
	}
	if err := ledger.Burn(addr, due, tracing.BalanceChangeRent); err != nil {
		return nil, err
	}
	alive.RentAllowance = new(uint256.Int).Sub(alive.RentAllowance, due)
	alive.DeductBlock = block
	rentCollectedMeter.Mark(int64(due.Uint64()))
	return info, d.Put(addr, info)
}

func (d *Directory) evict(addr common.Address, alive *AliveContractInfo) (*ContractInfo, error) {
	root, err := d.overlay.StorageRoot(alive.TrieID)
	if err != nil {
		return nil, err
	}
	tomb := &ContractInfo{Tombstone: &TombstoneContractInfo{Hash: tombstoneHash(root, alive.CodeHash)}}
	if err := d.Put(addr, tomb); err != nil {
		return nil, err
	}
	evictionMeter.Mark(1)
	log.Warn("Evicted contract for unpaid rent", "address", addr, "root", root, "code", alive.CodeHash)
	return tomb, nil
}

func rentDue(blocks, fee, size uint64) *uint256.Int {
	rent := new(uint256.Int).Mul(uint256.NewInt(blocks), uint256.NewInt(fee))
	return rent.Mul(rent, uint256.NewInt(size))
}

// saturatingSub returns a-b, or zero if b exceeds a.
func saturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
