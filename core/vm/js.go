package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// jsExecutable is a compiled contract script. A script exports its entry
// points as global functions named "call" and, optionally, "deploy". Both
// receive the input as a 0x-prefixed hex string and return either a hex
// string or an object {data: hex, revert: bool}.
type jsExecutable struct {
	hash    common.Hash
	program *goja.Program
}

func (e *jsExecutable) CodeHash() common.Hash { return e.hash }

// JSExecutor runs contracts written in JavaScript on the goja interpreter.
// The host interface is exposed to scripts as the global object "ext".
type JSExecutor struct {
	schedule Schedule
}

// NewJSExecutor returns a goja-backed executor charging schedule for host calls.
func NewJSExecutor(schedule Schedule) *JSExecutor {
	return &JSExecutor{schedule: schedule}
}

func (j *JSExecutor) Engine() string { return "js" }

func (j *JSExecutor) Prepare(codeHash common.Hash, code []byte) (Executable, error) {
	program, err := goja.Compile(codeHash.Hex(), string(code), true)
	if err != nil {
		return nil, fmt.Errorf("compile contract %x: %w", codeHash, err)
	}
	return &jsExecutable{hash: codeHash, program: program}, nil
}

func (j *JSExecutor) Execute(exe Executable, entry EntryPoint, ext Ext, input []byte, gas *GasMeter) (ExecReturnValue, error) {
	script, ok := exe.(*jsExecutable)
	if !ok {
		return ExecReturnValue{}, fmt.Errorf("js engine cannot run %T", exe)
	}
	if err := gas.Charge(j.schedule.HostFnCost); err != nil {
		return ExecReturnValue{}, err
	}
	rt := goja.New()
	metered := newMeteredExt(ext, gas, &j.schedule)
	h := &jsHost{rt: rt, ext: metered, gas: gas}
	if err := rt.Set("ext", h.object()); err != nil {
		return ExecReturnValue{}, err
	}
	if _, err := rt.RunProgram(script.program); err != nil {
		return ExecReturnValue{}, h.trap(err)
	}
	fn, ok := goja.AssertFunction(rt.Get(entry.String()))
	if !ok {
		if entry == EntryDeploy {
			return ExecReturnValue{}, nil
		}
		return ExecReturnValue{}, fmt.Errorf("%w: %s", ErrUnknownEntryPoint, entry)
	}
	res, err := fn(goja.Undefined(), rt.ToValue(hexutil.Encode(input)))
	if err != nil {
		return ExecReturnValue{}, h.trap(err)
	}
	if h.oog != nil {
		return ExecReturnValue{}, h.oog
	}
	if metered.err != nil {
		return ExecReturnValue{}, metered.err
	}
	return decodeJSResult(res)
}

// jsHost binds the host interface to a goja runtime.
type jsHost struct {
	rt  *goja.Runtime
	ext *meteredExt
	gas *GasMeter

	// oog is sticky: a script that swallows an out-of-gas exception still fails.
	oog error
}

// throw raises err as a JavaScript exception carrying the Go error.
func (h *jsHost) throw(err error) {
	if errors.Is(err, ErrOutOfGas) && h.oog == nil {
		h.oog = err
	}
	panic(h.rt.NewGoError(err))
}

// trap converts an uncaught exception back into the host error that caused
// it, if there was one.
func (h *jsHost) trap(err error) error {
	if h.oog != nil {
		return h.oog
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if obj, ok := exc.Value().(*goja.Object); ok {
			if v := obj.Get("value"); v != nil {
				if herr, ok := v.Export().(error); ok {
					return herr
				}
			}
		}
	}
	return fmt.Errorf("contract trapped: %w", err)
}

func (h *jsHost) object() *goja.Object {
	obj := h.rt.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := obj.Set(name, fn); err != nil {
			panic(err)
		}
	}
	set("get", h.get)
	set("set", h.set)
	set("transfer", h.transfer)
	set("call", h.call)
	set("instantiate", h.instantiate)
	set("terminate", h.terminate)
	set("restore", h.restore)
	set("deposit", h.deposit)
	set("random", h.random)
	set("caller", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.Caller().Hex()) })
	set("address", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.Address().Hex()) })
	set("balance", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.Balance().Dec()) })
	set("valueTransferred", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.ValueTransferred().Dec()) })
	set("minimumBalance", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.MinimumBalance().Dec()) })
	set("tombstoneDeposit", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.TombstoneDeposit().Dec()) })
	set("rentAllowance", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.RentAllowance().Dec()) })
	set("now", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.Now()) })
	set("blockNumber", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.BlockNumber()) })
	set("maxValueSize", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.ext.MaxValueSize()) })
	set("gasLeft", func(goja.FunctionCall) goja.Value { return h.rt.ToValue(h.gas.GasLeft()) })
	set("setRentAllowance", func(call goja.FunctionCall) goja.Value {
		h.ext.SetRentAllowance(h.value(call.Argument(0)))
		return goja.Undefined()
	})
	set("weightPrice", func(call goja.FunctionCall) goja.Value {
		return h.rt.ToValue(h.ext.WeightPrice(uint64(call.Argument(0).ToInteger())).Dec())
	})
	return obj
}

func (h *jsHost) get(call goja.FunctionCall) goja.Value {
	val := h.ext.GetStorage(h.key(call.Argument(0)))
	if h.ext.err != nil {
		h.throw(h.ext.err)
	}
	if val == nil {
		return goja.Null()
	}
	return h.rt.ToValue(hexutil.Encode(val))
}

func (h *jsHost) set(call goja.FunctionCall) goja.Value {
	key := h.key(call.Argument(0))
	var value []byte
	if arg := call.Argument(1); !goja.IsNull(arg) && !goja.IsUndefined(arg) {
		value = h.bytes(arg)
		if value == nil {
			value = []byte{}
		}
	}
	if err := h.ext.SetStorage(key, value); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *jsHost) transfer(call goja.FunctionCall) goja.Value {
	if err := h.ext.Transfer(h.address(call.Argument(0)), h.value(call.Argument(1)), h.gas); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *jsHost) call(call goja.FunctionCall) goja.Value {
	ret, err := h.ext.Call(h.address(call.Argument(0)), h.value(call.Argument(1)), h.gas, h.bytes(call.Argument(2)))
	if err != nil {
		h.throw(err)
	}
	out := h.rt.NewObject()
	out.Set("data", hexutil.Encode(ret.Data))
	out.Set("reverted", ret.Flags.Reverted())
	return out
}

func (h *jsHost) instantiate(call goja.FunctionCall) goja.Value {
	codeHash := common.HexToHash(call.Argument(0).String())
	addr, ret, err := h.ext.Instantiate(codeHash, h.value(call.Argument(1)), h.gas, h.bytes(call.Argument(2)))
	if err != nil {
		h.throw(err)
	}
	out := h.rt.NewObject()
	out.Set("address", addr.Hex())
	out.Set("data", hexutil.Encode(ret.Data))
	out.Set("reverted", ret.Flags.Reverted())
	return out
}

func (h *jsHost) terminate(call goja.FunctionCall) goja.Value {
	if err := h.ext.Terminate(h.address(call.Argument(0)), h.gas); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *jsHost) restore(call goja.FunctionCall) goja.Value {
	var delta []StorageKey
	if arg := call.Argument(3); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		var keys []string
		if err := h.rt.ExportTo(arg, &keys); err != nil {
			h.throw(err)
		}
		for _, k := range keys {
			delta = append(delta, StorageKey(common.HexToHash(k)))
		}
	}
	codeHash := common.HexToHash(call.Argument(1).String())
	if err := h.ext.RestoreTo(h.address(call.Argument(0)), codeHash, h.value(call.Argument(2)), delta); err != nil {
		h.throw(err)
	}
	return goja.Undefined()
}

func (h *jsHost) deposit(call goja.FunctionCall) goja.Value {
	var raw []string
	if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		if err := h.rt.ExportTo(arg, &raw); err != nil {
			h.throw(err)
		}
	}
	topics := make([]common.Hash, len(raw))
	for i, t := range raw {
		topics[i] = common.HexToHash(t)
	}
	h.ext.DepositEvent(topics, h.bytes(call.Argument(1)))
	if h.ext.err != nil {
		h.throw(h.ext.err)
	}
	return goja.Undefined()
}

func (h *jsHost) random(call goja.FunctionCall) goja.Value {
	subject := h.bytes(call.Argument(0))
	return h.rt.ToValue(h.ext.Random(subject).Hex())
}

func (h *jsHost) key(v goja.Value) StorageKey {
	s := v.String()
	if !strings.HasPrefix(s, "0x") {
		// Plain strings name a slot by their hash.
		return StorageKey(crypto.Keccak256Hash([]byte(s)))
	}
	return BytesToStorageKey(h.bytes(v))
}

func (h *jsHost) bytes(v goja.Value) []byte {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	s := v.String()
	if s == "" || s == "0x" {
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		h.throw(fmt.Errorf("invalid hex %q: %w", s, err))
	}
	return b
}

func (h *jsHost) address(v goja.Value) common.Address {
	s := v.String()
	if !common.IsHexAddress(s) {
		h.throw(fmt.Errorf("invalid address %q", s))
	}
	return common.HexToAddress(s)
}

func (h *jsHost) value(v goja.Value) *uint256.Int {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return new(uint256.Int)
	}
	var (
		n   *uint256.Int
		err error
	)
	s := v.String()
	if strings.HasPrefix(s, "0x") {
		n, err = uint256.FromHex(s)
	} else {
		n, err = uint256.FromDecimal(s)
	}
	if err != nil {
		h.throw(fmt.Errorf("invalid value %q: %w", s, err))
	}
	return n
}

// decodeJSResult maps a script's return value onto ExecReturnValue.
func decodeJSResult(res goja.Value) (ExecReturnValue, error) {
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return ExecReturnValue{}, nil
	}
	switch v := res.Export().(type) {
	case string:
		data, err := decodeHexOutput(v)
		return ExecReturnValue{Data: data}, err
	case map[string]interface{}:
		var ret ExecReturnValue
		if s, ok := v["data"].(string); ok {
			data, err := decodeHexOutput(s)
			if err != nil {
				return ExecReturnValue{}, err
			}
			ret.Data = data
		}
		if revert, ok := v["revert"].(bool); ok && revert {
			ret.Flags |= FlagRevert
		}
		return ret, nil
	}
	return ExecReturnValue{}, fmt.Errorf("unsupported contract return value %v", res)
}

func decodeHexOutput(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	return hexutil.Decode(s)
}
