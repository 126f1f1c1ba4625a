package core

import (
	"encoding/binary"
	"testing"

	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowCallAlwaysReverted(t *testing.T) {
	env := newTestEnv(t, testConfig())
	writer := env.deploy("writer", 0)
	reverter := env.deploy("reverter", 0)
	failer := env.deploy("failer", 0)

	for _, addr := range []common.Address{writer, reverter, failer} {
		sim, err := env.simulate(addr, 0, nil)
		require.NoError(t, err)
		assert.True(t, sim.Result.Reverted(), "result of %s not reverted", addr)
	}

	sim, err := env.simulate(writer, 0, nil)
	require.NoError(t, err)
	assert.NoError(t, sim.Result.ExecErr)
	assert.Equal(t, []byte("ok"), sim.Result.Output)

	sim, err = env.simulate(failer, 0, nil)
	require.NoError(t, err)
	assert.EqualError(t, sim.Result.ExecErr, "boom")

	// Nothing the writer did reached committed storage.
	v, err := env.sim.Storage(writer, keyOne)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEscrowCallStampsInCallOrder(t *testing.T) {
	env := newTestEnv(t, testConfig())
	addrs, input := env.relayChain(3)

	sim, err := env.simulate(addrs[0], 0, input)
	require.NoError(t, err)
	require.NoError(t, sim.Result.ExecErr)
	assert.Equal(t, addrs[2].Bytes(), sim.Result.Output)

	require.Len(t, sim.Trace.Stamps, 3)
	for i, s := range sim.Trace.Stamps {
		assert.Equal(t, addrs[i], s.Dest)
		assert.Equal(t, types.EmptyRootHash, s.Storage, "stamp %d should see the committed, empty storage", i)
	}
	require.Len(t, sim.Trace.Writes, 3)
	for i, w := range sim.Trace.Writes {
		assert.Equal(t, addrs[i], w.Dest)
	}
	assert.Equal(t, 3, sim.Trace.TouchedContracts().Cardinality())
}

func TestEscrowCallStampSeesProvisionalWrites(t *testing.T) {
	env := newTestEnv(t, testConfig())
	relay := env.deploy("relay", 0)

	// The relay calls itself: the second stamp of the same contract must
	// reflect the write of the first frame.
	sim, err := env.simulate(relay, 0, relay.Bytes())
	require.NoError(t, err)
	require.Len(t, sim.Trace.Stamps, 2)
	assert.Equal(t, types.EmptyRootHash, sim.Trace.Stamps[0].Storage)
	assert.NotEqual(t, types.EmptyRootHash, sim.Trace.Stamps[1].Storage)
}

func TestEscrowCallDeterministic(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 10_000)
	addrs, input := env.relayChain(3)
	payer := env.deploy("payer", 0)

	run := func() []byte {
		rec := NewRecorder()
		for _, call := range []struct {
			to    common.Address
			value uint64
			input []byte
		}{
			{addrs[0], 10, input},
			{payer, 0, binary.BigEndian.AppendUint64(nil, 25)},
		} {
			sim, err := env.simulate(call.to, call.value, call.input)
			require.NoError(t, err)
			rec.Transfers = append(rec.Transfers, sim.Trace.Transfers...)
			rec.Writes = append(rec.Writes, sim.Trace.Writes...)
			rec.Stamps = append(rec.Stamps, sim.Trace.Stamps...)
		}
		enc, err := EncodeTrace(&rec.Trace)
		require.NoError(t, err)
		return enc
	}
	assert.Equal(t, run(), run())
}

func TestEscrowCallDepth(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(t, cfg)

	addrs, input := env.relayChain(cfg.MaxDepth)
	sim, err := env.simulate(addrs[0], 0, input)
	require.NoError(t, err)
	assert.NoError(t, sim.Result.ExecErr)
	assert.True(t, sim.Result.Reverted())
	assert.Len(t, sim.Trace.Stamps, cfg.MaxDepth)

	// One hop more fails at the last level.
	extra := env.deploy("relay", 0xff)
	sim, err = env.simulate(addrs[0], 0, append(input, extra.Bytes()...))
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrMaxCallDepthReached)
	assert.True(t, sim.Result.Reverted())
	assert.Len(t, sim.Trace.Stamps, cfg.MaxDepth)

	// Writes of the frames that ran before the failure stay in the trace.
	assert.Len(t, sim.Trace.Writes, cfg.MaxDepth)
}

func TestEscrowCallDoubleWrite(t *testing.T) {
	env := newTestEnv(t, testConfig())
	writer := env.deploy("writer", 0)
	info, err := env.sim.Contract(writer)
	require.NoError(t, err)

	sim, err := env.simulate(writer, 0, nil)
	require.NoError(t, err)
	require.Len(t, sim.Trace.Writes, 2)
	for i, want := range [][]byte{valueA, valueB} {
		w := sim.Trace.Writes[i]
		assert.Equal(t, writer, w.Dest)
		assert.Equal(t, info.Alive.TrieID, w.TrieID)
		assert.Equal(t, [32]byte(keyOne), w.Key)
		assert.Equal(t, want, w.Value)
	}
}

func TestEscrowCallGuards(t *testing.T) {
	env := newTestEnv(t, testConfig())
	writer := env.deploy("writer", 0)

	_, err := env.simulate(common.HexToAddress("0xdead"), 0, nil)
	assert.ErrorIs(t, err, vm.ErrNotCallable)

	_, err = env.sim.Simulate(&vm.CallMetadata{
		Escrow:    escrowAddr,
		Requester: requesterAddr,
		To:        writer,
		GasLimit:  DefaultConfig.Schedule.CallBaseCost - 1,
	})
	assert.ErrorIs(t, err, vm.ErrOutOfGas)
}

func TestEscrowCallOutOfGasMidChain(t *testing.T) {
	env := newTestEnv(t, testConfig())
	addrs, input := env.relayChain(3)

	// Enough for the first frame, not for the whole chain.
	sim, err := env.sim.Simulate(&vm.CallMetadata{
		Escrow:    escrowAddr,
		Requester: requesterAddr,
		To:        addrs[0],
		Data:      input,
		GasLimit:  400,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrOutOfGas)
	assert.True(t, sim.Result.Reverted())
	assert.Equal(t, uint64(400), sim.GasUsed)
}

func TestEscrowCallValueDeposit(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 1000)
	writer := env.deploy("writer", 0)

	sim, err := env.simulate(writer, 50, nil)
	require.NoError(t, err)
	require.Len(t, sim.Trace.Transfers, 1)
	assert.Equal(t, writer, sim.Trace.Transfers[0].To)
	assert.Equal(t, uint64(50), sim.Trace.Transfers[0].Value.Uint64())

	// The deposit survives the forced rollback.
	assert.Equal(t, uint64(950), env.balance(requesterAddr))
	assert.Equal(t, uint64(1050), env.balance(escrowAddr))
	assert.Equal(t, uint64(1000), env.balance(writer))
}

func TestEscrowCallInsolventRequester(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 120)
	writer := env.deploy("writer", 0)

	_, err := env.simulate(writer, 50, nil)
	assert.ErrorIs(t, err, vm.ErrBelowSubsistenceThreshold)
	assert.Equal(t, uint64(120), env.balance(requesterAddr))
	assert.Equal(t, uint64(1000), env.balance(escrowAddr))
}

func TestEscrowSubTransferOnlyRecorded(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 1000)
	payer := env.deploy("payer", 0)

	sim, err := env.simulate(payer, 0, binary.BigEndian.AppendUint64(nil, 300))
	require.NoError(t, err)
	require.NoError(t, sim.Result.ExecErr)
	require.Len(t, sim.Trace.Transfers, 1)
	assert.Equal(t, beneficiaryAddr, sim.Trace.Transfers[0].To)
	assert.Equal(t, uint64(300), sim.Trace.Transfers[0].Value.Uint64())

	assert.Equal(t, uint64(0), env.balance(beneficiaryAddr))
	assert.Equal(t, uint64(1000), env.balance(payer))
	assert.Equal(t, uint64(700), env.balance(requesterAddr))
	assert.Equal(t, uint64(1300), env.balance(escrowAddr))

	// A transfer the requester cannot back fails the code, not the chain.
	sim, err = env.simulate(payer, 0, binary.BigEndian.AppendUint64(nil, 650))
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrBelowSubsistenceThreshold)
	assert.Empty(t, sim.Trace.Transfers)
	assert.Equal(t, uint64(700), env.balance(requesterAddr))
}

func TestEscrowCallerIsEscrow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	inspector := env.deploy("inspector", 0)

	sim, err := env.simulate(inspector, 0, nil)
	require.NoError(t, err)
	require.Len(t, sim.Result.Output, common.AddressLength+32)
	assert.Equal(t, escrowAddr, common.BytesToAddress(sim.Result.Output[:common.AddressLength]))
	assert.Equal(t, uint64(1000), common.BytesToHash(sim.Result.Output[common.AddressLength:]).Big().Uint64())
}

func TestEscrowTransferScenarios(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := env.sim.newContext()
	gas := vm.NewGasMeter(testGas)

	// Requester holding 1000 moves 50 with a threshold of 100.
	env.fund(requesterAddr, 1000)
	rec := NewRecorder()
	require.NoError(t, ctx.EscrowTransfer(escrowAddr, requesterAddr, beneficiaryAddr, uint256.NewInt(50), []byte("memo"), gas, rec))
	require.Len(t, rec.Transfers, 1)
	assert.Equal(t, TransferEntry{To: beneficiaryAddr, Value: uint256.NewInt(50), Data: []byte("memo")}, rec.Transfers[0])
	assert.Equal(t, uint64(950), env.balance(requesterAddr))
	assert.Equal(t, uint64(1050), env.balance(escrowAddr))

	// A requester holding 120 cannot move 50.
	poor := common.HexToAddress("0x9009")
	env.fund(poor, 120)
	rec = NewRecorder()
	err := ctx.EscrowTransfer(escrowAddr, poor, beneficiaryAddr, uint256.NewInt(50), nil, gas, rec)
	assert.ErrorIs(t, err, vm.ErrBelowSubsistenceThreshold)
	transfers, writes, stamps := rec.Len()
	assert.Zero(t, transfers+writes+stamps)
	assert.Equal(t, uint64(120), env.balance(poor))
	assert.Equal(t, uint64(1050), env.balance(escrowAddr))

	// Exactly the threshold left is fine.
	require.NoError(t, ctx.EscrowTransfer(escrowAddr, poor, beneficiaryAddr, uint256.NewInt(20), nil, gas, rec))
	assert.Equal(t, uint64(100), env.balance(poor))
}

func TestEscrowTransferIgnoresProvisionalCredit(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 1050)
	donor := env.deploy("donor", 0)

	// The donor's balance reaches the requester only provisionally, so it
	// cannot back an escrow transfer.
	sim, err := env.simulate(donor, 0, binary.BigEndian.AppendUint64(nil, 1000))
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrBelowSubsistenceThreshold)
	assert.Empty(t, sim.Trace.Transfers)
	assert.Equal(t, uint64(1050), env.balance(requesterAddr))
	assert.Equal(t, uint64(1000), env.balance(escrowAddr))
	assert.Equal(t, uint64(1000), env.balance(donor))

	info, err := env.sim.Contract(donor)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.NotNil(t, info.Alive)

	// What the requester held when the chain started is enough.
	sim, err = env.simulate(donor, 0, binary.BigEndian.AppendUint64(nil, 900))
	require.NoError(t, err)
	require.NoError(t, sim.Result.ExecErr)
	require.Len(t, sim.Trace.Transfers, 1)
	assert.Equal(t, uint64(150), env.balance(requesterAddr))
	assert.Equal(t, uint64(1900), env.balance(escrowAddr))
	assert.GreaterOrEqual(t, env.balance(requesterAddr), testConfig().SubsistenceThreshold().Uint64())
}

func TestEscrowNestedCallWithValue(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.fund(requesterAddr, 1000)
	sender := env.deploy("sender", 0)
	writer := env.deploy("writer", 0)

	input := binary.BigEndian.AppendUint64(writer.Bytes(), 50)
	sim, err := env.simulate(sender, 0, input)
	require.NoError(t, err)
	require.NoError(t, sim.Result.ExecErr)
	assert.Equal(t, []byte("ok"), sim.Result.Output)

	require.Len(t, sim.Trace.Transfers, 1)
	assert.Equal(t, writer, sim.Trace.Transfers[0].To)
	assert.Equal(t, uint64(50), sim.Trace.Transfers[0].Value.Uint64())
	require.Len(t, sim.Trace.Stamps, 2)
	assert.Equal(t, writer, sim.Trace.Stamps[1].Dest)

	assert.Equal(t, uint64(950), env.balance(requesterAddr))
	assert.Equal(t, uint64(1050), env.balance(escrowAddr))
	assert.Equal(t, uint64(1000), env.balance(writer))
	assert.Equal(t, uint64(1000), env.balance(sender))
}

func TestEscrowNestedCallNotCallable(t *testing.T) {
	env := newTestEnv(t, testConfig())
	sender := env.deploy("sender", 0)

	tombstone := common.HexToAddress("0x7b")
	ctx := env.sim.newContext()
	require.NoError(t, ctx.Directory().Put(tombstone, &ContractInfo{Tombstone: &TombstoneContractInfo{Hash: common.Hash{1}}}))
	require.NoError(t, ctx.Overlay().Commit())

	for _, to := range []common.Address{common.HexToAddress("0xdead"), tombstone} {
		sim, err := env.simulate(sender, 0, binary.BigEndian.AppendUint64(to.Bytes(), 0))
		require.NoError(t, err)
		assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrNotCallable, "callee %s", to)
		assert.True(t, sim.Result.Reverted())
		assert.Len(t, sim.Trace.Stamps, 1)
	}
}

func TestEscrowNestedCallMissingCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	sender := env.deploy("sender", 0)
	broken := env.deploy("writer", 0)

	ctx := env.sim.newContext()
	info, err := ctx.Directory().Lookup(broken)
	require.NoError(t, err)
	info.Alive.CodeHash = crypto.Keccak256Hash([]byte("missing"))
	require.NoError(t, ctx.Directory().Put(broken, info))
	require.NoError(t, ctx.Overlay().Commit())

	sim, err := env.simulate(sender, 0, binary.BigEndian.AppendUint64(broken.Bytes(), 0))
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrCodeNotFound)
	assert.Len(t, sim.Trace.Stamps, 1)
	assert.Empty(t, sim.Trace.Writes)
}

func TestEscrowCallDepthBeforeCallable(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(t, cfg)

	// The last relay tries one hop too many, to an address with no contract.
	addrs, input := env.relayChain(cfg.MaxDepth)
	sim, err := env.simulate(addrs[0], 0, append(input, common.HexToAddress("0xdead").Bytes()...))
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Result.ExecErr, vm.ErrMaxCallDepthReached)
	assert.NotErrorIs(t, sim.Result.ExecErr, vm.ErrNotCallable)
	assert.Len(t, sim.Trace.Stamps, cfg.MaxDepth)
}

func TestEscrowCallStampBeforeInsolvency(t *testing.T) {
	env := newTestEnv(t, testConfig())
	writer := env.deploy("writer", 0)
	poor := common.HexToAddress("0x9009")
	env.fund(poor, 120)

	info, err := env.sim.Contract(writer)
	require.NoError(t, err)
	exe, err := env.sim.codes.Load(info.Alive.CodeHash)
	require.NoError(t, err)

	// The stamp is taken before the frame's scope opens, so a deposit the
	// requester cannot afford still leaves it behind.
	rec := NewRecorder()
	res, err := env.sim.newContext().EscrowCall(escrowAddr, poor, writer, writer, uint256.NewInt(50), vm.NewGasMeter(testGas), nil, rec, exe)
	assert.ErrorIs(t, err, vm.ErrBelowSubsistenceThreshold)
	assert.Nil(t, res)

	transfers, writes, stamps := rec.Len()
	assert.Zero(t, transfers)
	assert.Zero(t, writes)
	require.Equal(t, 1, stamps)
	assert.Equal(t, writer, rec.Stamps[0].Dest)
	assert.Equal(t, uint64(120), env.balance(poor))
}
