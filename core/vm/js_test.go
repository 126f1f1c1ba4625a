package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

func prepareJS(t *testing.T, src string) (*JSExecutor, Executable) {
	t.Helper()
	j := NewJSExecutor(DefaultSchedule)
	exe, err := j.Prepare(crypto.Keccak256Hash([]byte(src)), []byte(src))
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	return j, exe
}

func TestJSStorageAndEvents(t *testing.T) {
	j, exe := prepareJS(t, `
		function call(input) {
			var prev = ext.get("counter");
			ext.set("counter", input);
			ext.deposit(["0x01"], input);
			return prev === null ? "0x" : prev;
		}
	`)
	ext := newMemoryExt()
	gas := NewGasMeter(100_000)

	ret, err := j.Execute(exe, EntryCall, ext, []byte{0x2a}, gas)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(ret.Data) != 0 || !ret.IsSuccess() {
		t.Fatalf("unexpected first result %+v", ret)
	}
	slot := StorageKey(crypto.Keccak256Hash([]byte("counter")))
	if !bytes.Equal(ext.storage[slot], []byte{0x2a}) {
		t.Fatalf("slot = %x", ext.storage[slot])
	}
	if len(ext.events) != 1 {
		t.Fatalf("events = %d, want 1", len(ext.events))
	}
	ret, err = j.Execute(exe, EntryCall, ext, []byte{0x2b}, gas)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !bytes.Equal(ret.Data, []byte{0x2a}) {
		t.Fatalf("previous value = %x", ret.Data)
	}
}

func TestJSRevertFlag(t *testing.T) {
	j, exe := prepareJS(t, `function call(input) { return {data: "0xff", revert: true}; }`)
	ret, err := j.Execute(exe, EntryCall, newMemoryExt(), nil, NewGasMeter(1000))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !ret.Flags.Reverted() || !bytes.Equal(ret.Data, []byte{0xff}) {
		t.Fatalf("unexpected result %+v", ret)
	}
}

func TestJSHostErrorUnwrapped(t *testing.T) {
	j, exe := prepareJS(t, `
		function call(input) {
			ext.call("0x00000000000000000000000000000000000000aa", "0", "0x");
			return "0x";
		}
	`)
	_, err := j.Execute(exe, EntryCall, newMemoryExt(), nil, NewGasMeter(1000))
	if !errors.Is(err, ErrNotCallable) {
		t.Fatalf("expected ErrNotCallable, got %v", err)
	}
}

func TestJSOutOfGasIsSticky(t *testing.T) {
	j, exe := prepareJS(t, `
		function call(input) {
			try { ext.set("a", "0x01"); } catch (e) {}
			return "0x";
		}
	`)
	gas := NewGasMeter(DefaultSchedule.HostFnCost + 1)
	if _, err := j.Execute(exe, EntryCall, newMemoryExt(), nil, gas); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
}

func TestJSTransferAndCall(t *testing.T) {
	j, exe := prepareJS(t, `
		function call(input) {
			ext.transfer("0x00000000000000000000000000000000000000bb", "250");
			var r = ext.call("0x00000000000000000000000000000000000000cc", "0", input);
			return r.data;
		}
	`)
	ext := newMemoryExt()
	ext.onCall = func(to common.Address, input []byte) (ExecReturnValue, error) {
		return ExecReturnValue{Data: append(input, 0x01)}, nil
	}
	ret, err := j.Execute(exe, EntryCall, ext, []byte{0x09}, NewGasMeter(10_000))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !bytes.Equal(ret.Data, []byte{0x09, 0x01}) {
		t.Fatalf("call output = %x", ret.Data)
	}
	if !ext.balance.Eq(uint256.NewInt(750)) || len(ext.transfers) != 1 {
		t.Fatalf("transfer not applied: balance %v transfers %d", ext.balance, len(ext.transfers))
	}
}

func TestJSMissingEntryPoint(t *testing.T) {
	j, exe := prepareJS(t, `var x = 1;`)
	if _, err := j.Execute(exe, EntryDeploy, newMemoryExt(), nil, NewGasMeter(1000)); err != nil {
		t.Fatalf("missing constructor should be a no-op: %v", err)
	}
	if _, err := j.Execute(exe, EntryCall, newMemoryExt(), nil, NewGasMeter(1000)); !errors.Is(err, ErrUnknownEntryPoint) {
		t.Fatalf("expected ErrUnknownEntryPoint, got %v", err)
	}
}

func TestJSCompileError(t *testing.T) {
	j := NewJSExecutor(DefaultSchedule)
	if _, err := j.Prepare(common.Hash{}, []byte("function (")); err == nil {
		t.Fatalf("expected compile error")
	}
}
