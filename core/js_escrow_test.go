package core

import (
	"testing"

	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jsCounter = `
		function deploy(input) { ext.set("owner", ext.caller()); }
		function call(input) {
			ext.set("n", input);
			return ext.get("n");
		}
	`
	jsForwarder = `
		function call(input) {
			var r = ext.call(input, "0", "0x07");
			ext.set("seen", r.data);
			return r.data;
		}
	`
)

func jsSlot(name string) vm.StorageKey {
	return vm.StorageKey(crypto.Keccak256Hash([]byte(name)))
}

func TestEscrowCallJS(t *testing.T) {
	cfg := testConfig()
	cfg.Engine = vm.EngineJS
	env := newTestEnv(t, cfg)
	require.Equal(t, vm.EngineJS, env.sim.Engine())

	counter := env.deploy(jsCounter, 0)
	forwarder := env.deploy(jsForwarder, 0)

	owner, err := env.sim.Storage(counter, jsSlot("owner"))
	require.NoError(t, err)
	assert.Equal(t, deployerAddr.Bytes(), owner)

	sim, err := env.simulate(forwarder, 0, counter.Bytes())
	require.NoError(t, err)
	require.NoError(t, sim.Result.ExecErr)
	assert.True(t, sim.Result.Reverted())
	assert.Equal(t, []byte{0x07}, sim.Result.Output)

	require.Len(t, sim.Trace.Stamps, 2)
	assert.Equal(t, forwarder, sim.Trace.Stamps[0].Dest)
	assert.Equal(t, counter, sim.Trace.Stamps[1].Dest)

	require.Len(t, sim.Trace.Writes, 2)
	assert.Equal(t, counter, sim.Trace.Writes[0].Dest)
	assert.Equal(t, [32]byte(jsSlot("n")), sim.Trace.Writes[0].Key)
	assert.Equal(t, forwarder, sim.Trace.Writes[1].Dest)
	assert.Equal(t, []byte{0x07}, sim.Trace.Writes[1].Value)

	v, err := env.sim.Storage(counter, jsSlot("n"))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = env.sim.Storage(forwarder, jsSlot("seen"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRealCallJS(t *testing.T) {
	cfg := testConfig()
	cfg.Engine = vm.EngineJS
	env := newTestEnv(t, cfg)
	counter := env.deploy(jsCounter, 0)
	forwarder := env.deploy(jsForwarder, 0)

	ret, err := env.sim.Call(deployerAddr, forwarder, nil, testGas, counter.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, ret.Data)

	v, err := env.sim.Storage(counter, jsSlot("n"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, v)
}
