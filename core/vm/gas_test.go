package vm

import (
	"errors"
	"testing"
)

func TestGasMeterCharge(t *testing.T) {
	g := NewGasMeter(100)
	if err := g.Charge(40); err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if g.GasLeft() != 60 || g.Spent() != 40 || g.Limit() != 100 {
		t.Fatalf("unexpected meter state: left %d spent %d", g.GasLeft(), g.Spent())
	}
	if err := g.Charge(60); err != nil {
		t.Fatalf("charging the exact remainder failed: %v", err)
	}
	if g.GasLeft() != 0 {
		t.Fatalf("left = %d, want 0", g.GasLeft())
	}
}

func TestGasMeterExhaustionIsTerminal(t *testing.T) {
	g := NewGasMeter(10)
	if err := g.Charge(11); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
	if g.GasLeft() != 0 {
		t.Fatalf("meter not drained: %d left", g.GasLeft())
	}
	if err := g.Charge(1); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("drained meter accepted a charge: %v", err)
	}
	if err := g.Charge(0); err != nil {
		t.Fatalf("zero charge on a drained meter: %v", err)
	}
}

func TestScheduleCosts(t *testing.T) {
	s := DefaultSchedule
	if got := s.storageWriteCost(10); got != s.StorageWriteCost+10*s.StorageWritePerByte {
		t.Fatalf("storage write cost = %d", got)
	}
	if got := s.eventCost(2, 3); got != s.EventBaseCost+67*s.EventPerByte {
		t.Fatalf("event cost = %d", got)
	}
}

func TestNewExecutor(t *testing.T) {
	for _, engine := range []string{"", EngineNative, EngineJS} {
		exec, err := NewExecutor(engine, DefaultSchedule)
		if err != nil {
			t.Fatalf("engine %q: %v", engine, err)
		}
		want := engine
		if want == "" {
			want = DefaultEngine
		}
		if exec.Engine() != want {
			t.Fatalf("engine %q reports %q", engine, exec.Engine())
		}
	}
	if _, err := NewExecutor("evm", DefaultSchedule); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestCallMetadataDestination(t *testing.T) {
	m := &CallMetadata{To: [20]byte{1}}
	if m.Destination() != m.To {
		t.Fatalf("destination should default to To")
	}
	m.Dest = [20]byte{2}
	if m.Destination() != m.Dest {
		t.Fatalf("explicit destination ignored")
	}
}
