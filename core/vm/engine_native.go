//go:build !jsengine
// +build !jsengine

package vm

// DefaultEngine is the engine NewExecutor picks when none is named. Builds
// with the `jsengine` tag default to the goja engine instead.
const DefaultEngine = EngineNative
