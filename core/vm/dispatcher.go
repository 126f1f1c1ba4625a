package vm

import "fmt"

// Engine names accepted by NewExecutor.
const (
	EngineNative = "native"
	EngineJS     = "js"
)

// NewExecutor returns the executor registered under engine. The native engine
// starts with an empty registry; callers register Go contracts on the returned
// *NativeExecutor before deploying code that names them.
func NewExecutor(engine string, schedule Schedule) (Executor, error) {
	if engine == "" {
		engine = DefaultEngine
	}
	switch engine {
	case EngineNative:
		return NewNativeExecutor(schedule), nil
	case EngineJS:
		return NewJSExecutor(schedule), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
}
