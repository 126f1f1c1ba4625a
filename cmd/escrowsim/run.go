package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/clydemeng/bsc-escrow/core"
	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/clydemeng/bsc-escrow/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
)

// simulationOutput is the JSON report printed for every simulated chain.
type simulationOutput struct {
	To         common.Address   `json:"to"`
	Output     hexutil.Bytes    `json:"output"`
	Reverted   bool             `json:"reverted"`
	Error      string           `json:"error,omitempty"`
	GasUsed    uint64           `json:"gasUsed"`
	Trace      core.Trace       `json:"trace"`
	RLP        hexutil.Bytes    `json:"rlp"`
	Touched    []common.Address `json:"touched"`
	LedgerRoot common.Hash      `json:"ledgerRoot"`
}

// reportWriter renders the reports of a scenario.
type reportWriter func(w io.Writer, reports []*simulationOutput) error

// runScenario builds the genesis state and contracts of cfg in sim, then
// runs every configured simulation and renders one report per chain to w.
func runScenario(cfg *scenarioConfig, sim *core.Simulator, w io.Writer, write reportWriter) error {
	registerBuiltins(sim.Executor())
	sim.SetBlock(core.BlockContext{Number: cfg.Block.Number, Time: cfg.Block.Time})

	for _, acc := range cfg.Genesis {
		balance, err := parseValue(acc.Balance)
		if err != nil {
			return fmt.Errorf("genesis balance of %s: %w", acc.Address, err)
		}
		sim.Ledger().Mint(acc.Address, balance, tracing.BalanceChangeGenesis)
	}

	deployed := make(map[string]common.Address, len(cfg.Contracts))
	for i := range cfg.Contracts {
		c := &cfg.Contracts[i]
		code, err := c.code()
		if err != nil {
			return err
		}
		endowment, err := parseValue(c.Endowment)
		if err != nil {
			return fmt.Errorf("endowment of %q: %w", c.Name, err)
		}
		addr, err := sim.Deploy(c.Deployer, code, endowment, c.gasLimit(), c.Input)
		if err != nil {
			return fmt.Errorf("deploy %q: %w", c.Name, err)
		}
		deployed[c.Name] = addr
	}

	reports := make([]*simulationOutput, 0, len(cfg.Simulate))
	for i, s := range cfg.Simulate {
		to, err := resolve(s.To, deployed)
		if err != nil {
			return err
		}
		value, err := parseValue(s.Value)
		if err != nil {
			return fmt.Errorf("simulation %d value: %w", i, err)
		}
		gasLimit := s.GasLimit
		if gasLimit == 0 {
			gasLimit = defaultGasLimit
		}
		res, err := sim.Simulate(&vm.CallMetadata{
			Escrow:    s.Escrow,
			Requester: s.Requester,
			To:        to,
			Dest:      s.Dest,
			Value:     value,
			Data:      s.Input,
			GasLimit:  gasLimit,
		})
		if err != nil {
			return fmt.Errorf("simulation %d: %w", i, err)
		}
		out, err := report(to, res, sim)
		if err != nil {
			return err
		}
		log.Info("Simulated chain", "index", i, "to", to, "gas", res.GasUsed, "stamps", len(out.Trace.Stamps))
		reports = append(reports, out)
	}
	return write(w, reports)
}

// writeJSON prints every report as an indented JSON document.
func writeJSON(w io.Writer, reports []*simulationOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// writeTable prints one row per recorded stamp, transfer and write.
func writeTable(w io.Writer, reports []*simulationOutput) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Chain", "Kind", "Contract", "Detail"})
	table.SetAutoWrapText(false)
	for i, r := range reports {
		chain := strconv.Itoa(i)
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		table.Append([]string{chain, "result", r.To.Hex(), fmt.Sprintf("%s gas=%d output=%s", status, r.GasUsed, r.Output)})
		for _, s := range r.Trace.Stamps {
			table.Append([]string{chain, "stamp", s.Dest.Hex(), s.Storage.Hex()})
		}
		for _, tr := range r.Trace.Transfers {
			table.Append([]string{chain, "transfer", tr.To.Hex(), tr.Value.Dec()})
		}
		for _, wr := range r.Trace.Writes {
			value := "deleted"
			if wr.Value != nil {
				value = hexutil.Encode(wr.Value)
			}
			table.Append([]string{chain, "write", wr.Dest.Hex(), fmt.Sprintf("%x=%s", wr.Key, value)})
		}
	}
	table.Render()
	return nil
}

func report(to common.Address, res *core.Simulation, sim *core.Simulator) (*simulationOutput, error) {
	blob, err := core.EncodeTrace(&res.Trace.Trace)
	if err != nil {
		return nil, err
	}
	touched := res.Trace.TouchedContracts().ToSlice()
	slices.SortFunc(touched, common.Address.Cmp)
	out := &simulationOutput{
		To:         to,
		Output:     res.Result.Output,
		Reverted:   res.Result.Reverted(),
		GasUsed:    res.GasUsed,
		Trace:      res.Trace.Trace,
		RLP:        blob,
		Touched:    touched,
		LedgerRoot: sim.Ledger().Root(),
	}
	if res.Result.ExecErr != nil {
		out.Error = res.Result.ExecErr.Error()
	}
	return out, nil
}
