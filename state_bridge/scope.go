package statebridge

// change is one pending write. A deleted change shadows any value further
// down the overlay.
type change struct {
	value   []byte
	deleted bool
}

// scope is one provisional layer of the overlay. It owns the writes and
// events made while it was the innermost layer, plus the ledger snapshot to
// return to if it is discarded.
type scope struct {
	changes map[string]change
	events  []Event
	ledger  *LedgerSnapshot
}

func newScope(ledger *LedgerSnapshot) *scope {
	return &scope{changes: make(map[string]change), ledger: ledger}
}

// open pushes a fresh scope on top of the overlay.
func (o *Overlay) open() *scope {
	var snap *LedgerSnapshot
	if o.ledger != nil {
		s := o.ledger.Snapshot()
		snap = &s
	}
	s := newScope(snap)
	o.scopes = append(o.scopes, s)
	return s
}

// pop removes s, which must be the innermost scope.
func (o *Overlay) pop(s *scope) {
	if len(o.scopes) < 2 || o.scopes[len(o.scopes)-1] != s {
		panic("statebridge: scope closed out of order")
	}
	o.scopes = o.scopes[:len(o.scopes)-1]
}

// merge folds s into its parent. The ledger snapshot is released: the
// parent's own snapshot still covers every balance change made in s.
func (o *Overlay) merge(s *scope) {
	o.pop(s)
	if s.ledger != nil {
		o.ledger.Release(*s.ledger)
	}
	parent := o.top()
	for k, c := range s.changes {
		parent.changes[k] = c
	}
	parent.events = append(parent.events, s.events...)
	scopeMergeCounter.Inc(1)
}

// discard drops s and rewinds the ledger to where it was when s opened.
func (o *Overlay) discard(s *scope) {
	o.pop(s)
	if s.ledger != nil {
		o.ledger.RevertToSnapshot(*s.ledger)
	}
	scopeDiscardCounter.Inc(1)
}
