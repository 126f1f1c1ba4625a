// escrowsim runs speculative escrow call chains described in a TOML scenario
// and prints the resulting traces.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/clydemeng/bsc-escrow/core"
	"github.com/clydemeng/bsc-escrow/core/vm"
	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML scenario file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory for the contract storage database (in-memory if empty)",
	}
	engineFlag = &cli.StringFlag{
		Name:  "engine",
		Usage: "Execution engine overriding the scenario (native, js)",
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Report format (json, table)",
		Value: "json",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a rotated file instead of stderr",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "Contract address",
		Required: true,
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "32-byte storage key (hex)",
		Required: true,
	}
)

var (
	runCommand = &cli.Command{
		Name:   "run",
		Usage:  "Build the scenario state and run its simulations",
		Action: runCmd,
		Flags:  []cli.Flag{configFlag, dataDirFlag, engineFlag, formatFlag},
	}
	storageCommand = &cli.Command{
		Name:   "storage",
		Usage:  "Print a committed storage slot from a data directory",
		Action: storageCmd,
		Flags:  []cli.Flag{configFlag, dataDirFlag, addressFlag, keyFlag},
	}
	dumpConfigCommand = &cli.Command{
		Name:   "dumpconfig",
		Usage:  "Export the effective scenario configuration",
		Action: dumpConfigCmd,
		Flags:  []cli.Flag{configFlag, engineFlag},
	}
)

func main() {
	app := &cli.App{
		Name:     "escrowsim",
		Usage:    "speculative escrow call simulator",
		Flags:    []cli.Flag{verbosityFlag, logFileFlag},
		Commands: []*cli.Command{runCommand, storageCommand, dumpConfigCommand},
		Before: func(ctx *cli.Context) error {
			setupLogging(ctx.Int(verbosityFlag.Name), ctx.String(logFileFlag.Name))
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(verbosity int, logFile string) {
	usecolor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	output := io.Writer(os.Stderr)
	switch {
	case logFile != "":
		usecolor = false
		output = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
		}
	case usecolor:
		output = colorable.NewColorableStderr()
	}
	handler := log.NewTerminalHandlerWithLevel(output, log.FromLegacyLevel(verbosity), usecolor)
	log.SetDefault(log.NewLogger(handler))
}

func scenarioFromFlags(ctx *cli.Context) (*scenarioConfig, error) {
	cfg, err := loadScenario(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(engineFlag.Name) {
		cfg.Escrow.Engine = ctx.String(engineFlag.Name)
	}
	return cfg, nil
}

// openSimulator returns a simulator over the data directory, or over memory
// when none is given. Balances always start empty.
func openSimulator(cfg *core.Config, datadir string) (*core.Simulator, error) {
	if datadir == "" {
		return core.NewMemorySimulator(cfg)
	}
	backend, err := statebridge.OpenBackend(datadir, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	ledger, err := statebridge.NewMemoryLedger(uint256.NewInt(cfg.ExistentialDeposit))
	if err != nil {
		backend.Close()
		return nil, err
	}
	sim, err := core.NewSimulator(cfg, backend, ledger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return sim, nil
}

func runCmd(ctx *cli.Context) error {
	cfg, err := scenarioFromFlags(ctx)
	if err != nil {
		return err
	}
	sim, err := openSimulator(&cfg.Escrow, ctx.String(dataDirFlag.Name))
	if err != nil {
		return err
	}
	defer sim.Close()

	switch format := ctx.String(formatFlag.Name); format {
	case "json":
		return runScenario(cfg, sim, os.Stdout, writeJSON)
	case "table":
		return runScenario(cfg, sim, os.Stdout, writeTable)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func storageCmd(ctx *cli.Context) error {
	cfg, err := scenarioFromFlags(ctx)
	if err != nil {
		return err
	}
	addr := ctx.String(addressFlag.Name)
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid address %q", addr)
	}
	key, err := hexutil.Decode(ctx.String(keyFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	sim, err := openSimulator(&cfg.Escrow, ctx.String(dataDirFlag.Name))
	if err != nil {
		return err
	}
	defer sim.Close()

	v, err := sim.Storage(common.HexToAddress(addr), vm.BytesToStorageKey(key))
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(v))
	return nil
}

func dumpConfigCmd(ctx *cli.Context) error {
	cfg, err := scenarioFromFlags(ctx)
	if err != nil {
		return err
	}
	out, err := core.DumpConfig(cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}
