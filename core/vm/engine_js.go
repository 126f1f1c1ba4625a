//go:build jsengine
// +build jsengine

package vm

// DefaultEngine is the engine NewExecutor picks when none is named.
const DefaultEngine = EngineJS
