package statebridge

import (
	"errors"
	"fmt"

	"github.com/clydemeng/bsc-escrow/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrBelowMinimumBalance = errors.New("transfer would leave account below minimum balance")
	ErrDestinationNotAlive = errors.New("transfer would create an account below minimum balance")
	ErrUntracked           = errors.New("durable transfer involves an untracked account")
)

// movement is a balance transfer that survives ledger rollbacks.
type movement struct {
	from, to common.Address
	value    *uint256.Int
}

// LedgerSnapshot marks a point the ledger can be rewound to.
type LedgerSnapshot struct {
	id      int
	durable int
}

// mark is an open snapshot together with the balances the tracked accounts
// held when it was taken.
type mark struct {
	LedgerSnapshot
	balances map[common.Address]*uint256.Int
}

// Ledger holds account balances on top of a go-ethereum StateDB. Rewinding
// is delegated to the StateDB journal, except for durable movements: those
// are re-applied after every rollback that would otherwise erase them.
//
// A durable movement is only accepted if it can be replayed after a rollback
// to any open snapshot. To check that, the ledger remembers the balance each
// tracked account held at every open snapshot.
type Ledger struct {
	db                 *state.StateDB
	existentialDeposit *uint256.Int
	durable            []movement
	tracked            map[common.Address]int
	marks              []mark
}

// NewLedger wraps db. Accounts are kept alive while they hold at least
// existentialDeposit.
func NewLedger(db *state.StateDB, existentialDeposit *uint256.Int) *Ledger {
	return &Ledger{
		db:                 db,
		existentialDeposit: new(uint256.Int).Set(existentialDeposit),
		tracked:            make(map[common.Address]int),
	}
}

// NewMemoryLedger returns an empty ledger backed by an in-memory state database.
func NewMemoryLedger(existentialDeposit *uint256.Int) (*Ledger, error) {
	db, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, err
	}
	return NewLedger(db, existentialDeposit), nil
}

// StateDB exposes the underlying state database.
func (l *Ledger) StateDB() *state.StateDB { return l.db }

// Balance returns a copy of the balance of addr.
func (l *Ledger) Balance(addr common.Address) *uint256.Int {
	return new(uint256.Int).Set(l.db.GetBalance(addr))
}

// MinimumBalance returns the existential deposit.
func (l *Ledger) MinimumBalance() *uint256.Int {
	return new(uint256.Int).Set(l.existentialDeposit)
}

// Mint credits value to addr out of thin air.
func (l *Ledger) Mint(addr common.Address, value *uint256.Int, reason tracing.BalanceChangeReason) {
	l.db.AddBalance(addr, value, reason.Geth())
}

// Burn debits value from addr without crediting anyone.
func (l *Ledger) Burn(addr common.Address, value *uint256.Int, reason tracing.BalanceChangeReason) error {
	if l.db.GetBalance(addr).Lt(value) {
		return ErrInsufficientBalance
	}
	l.db.SubBalance(addr, value, reason.Geth())
	return nil
}

// Transfer moves value from one account to another. It fails when the
// destination would end up holding less than the existential deposit. With
// keepAlive set it also fails rather than leave the source below it.
func (l *Ledger) Transfer(from, to common.Address, value *uint256.Int, keepAlive bool, reason tracing.BalanceChangeReason) error {
	if err := l.canTransfer(from, to, value, keepAlive); err != nil {
		return err
	}
	l.move(from, to, value, reason)
	return nil
}

// Track makes addrs eligible for durable movements in snapshots taken from
// now on. The returned function undoes the registration.
func (l *Ledger) Track(addrs ...common.Address) (untrack func()) {
	for _, addr := range addrs {
		l.tracked[addr]++
	}
	return func() {
		for _, addr := range addrs {
			if l.tracked[addr]--; l.tracked[addr] <= 0 {
				delete(l.tracked, addr)
			}
		}
	}
}

// TransferDurable performs a keep-alive transfer that survives any later
// RevertToSnapshot, including one to a snapshot taken before it. Both
// accounts must be tracked in every open snapshot, and the keep-alive rules
// must hold for the balances each of those snapshots would leave behind.
func (l *Ledger) TransferDurable(from, to common.Address, value *uint256.Int, reason tracing.BalanceChangeReason) error {
	if value.IsZero() || from == to {
		return nil
	}
	if err := l.canTransfer(from, to, value, true); err != nil {
		return err
	}
	for i := range l.marks {
		src, ok := l.settledAt(&l.marks[i], from)
		if !ok {
			return ErrUntracked
		}
		dst, ok := l.settledAt(&l.marks[i], to)
		if !ok {
			return ErrUntracked
		}
		if err := l.checkTransfer(src, dst, value, true); err != nil {
			return err
		}
	}
	l.move(from, to, value, reason)
	l.durable = append(l.durable, movement{from: from, to: to, value: new(uint256.Int).Set(value)})
	return nil
}

// SettledBalance returns the lowest balance addr would be left with by a
// rollback to any open snapshot, or by none at all. Accounts that are not
// tracked report their current balance.
func (l *Ledger) SettledBalance(addr common.Address) *uint256.Int {
	low := l.Balance(addr)
	for i := range l.marks {
		if bal, ok := l.settledAt(&l.marks[i], addr); ok && bal.Lt(low) {
			low = bal
		}
	}
	return low
}

// settledAt is the balance of addr right after a rollback to m: what it held
// when m was taken plus the durable movements made since.
func (l *Ledger) settledAt(m *mark, addr common.Address) (*uint256.Int, bool) {
	base, ok := m.balances[addr]
	if !ok {
		return nil, false
	}
	var in, out uint256.Int
	for _, mv := range l.durable[m.durable:] {
		if mv.to == addr {
			in.Add(&in, mv.value)
		}
		if mv.from == addr {
			out.Add(&out, mv.value)
		}
	}
	bal := new(uint256.Int).Add(base, &in)
	if bal.Lt(&out) {
		return bal.Clear(), true
	}
	return bal.Sub(bal, &out), true
}

func (l *Ledger) canTransfer(from, to common.Address, value *uint256.Int, keepAlive bool) error {
	if value.IsZero() || from == to {
		return nil
	}
	return l.checkTransfer(l.db.GetBalance(from), l.db.GetBalance(to), value, keepAlive)
}

// checkTransfer applies the transfer rules to the given source and
// destination balances.
func (l *Ledger) checkTransfer(src, dst, value *uint256.Int, keepAlive bool) error {
	if src.Lt(value) {
		return ErrInsufficientBalance
	}
	if keepAlive && new(uint256.Int).Sub(src, value).Lt(l.existentialDeposit) {
		return ErrBelowMinimumBalance
	}
	if new(uint256.Int).Add(dst, value).Lt(l.existentialDeposit) {
		return ErrDestinationNotAlive
	}
	return nil
}

func (l *Ledger) move(from, to common.Address, value *uint256.Int, reason tracing.BalanceChangeReason) {
	if value.IsZero() || from == to {
		return
	}
	l.db.SubBalance(from, value, reason.Geth())
	l.db.AddBalance(to, value, reason.Geth())
}

// Snapshot returns a mark for RevertToSnapshot. It stays open until it is
// either reverted to or released.
func (l *Ledger) Snapshot() LedgerSnapshot {
	snap := LedgerSnapshot{id: l.db.Snapshot(), durable: len(l.durable)}
	balances := make(map[common.Address]*uint256.Int, len(l.tracked))
	for addr := range l.tracked {
		balances[addr] = l.Balance(addr)
	}
	l.marks = append(l.marks, mark{LedgerSnapshot: snap, balances: balances})
	return snap
}

// Release closes snap and every snapshot taken after it without rewinding
// anything. Their changes now belong to the enclosing snapshot.
func (l *Ledger) Release(snap LedgerSnapshot) {
	l.closeFrom(snap.id)
}

func (l *Ledger) closeFrom(id int) {
	for i, m := range l.marks {
		if m.id >= id {
			l.marks = l.marks[:i]
			return
		}
	}
}

// RevertToSnapshot rewinds every balance change made since snap, then
// re-applies the durable movements made since snap in their original order.
// TransferDurable only admits movements that stay valid after such a
// rollback, so a failing replay means the ledger is corrupt.
func (l *Ledger) RevertToSnapshot(snap LedgerSnapshot) {
	l.closeFrom(snap.id)
	l.db.RevertToSnapshot(snap.id)
	for _, m := range l.durable[snap.durable:] {
		if err := l.canTransfer(m.from, m.to, m.value, true); err != nil {
			panic(fmt.Sprintf("statebridge: durable movement %s -> %s of %s no longer applies: %v", m.from, m.to, m.value, err))
		}
		l.move(m.from, m.to, m.value, tracing.BalanceChangeReplay)
		durableReplayMeter.Mark(1)
	}
}

// Root returns the current state root of the balances.
func (l *Ledger) Root() common.Hash {
	return l.db.IntermediateRoot(true)
}
