package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/clydemeng/bsc-escrow/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// scenarioConfig is the TOML layout read by escrowsim. Escrow holds the
// engine parameters; the remaining sections describe the state to build and
// the chains to simulate on top of it.
type scenarioConfig struct {
	Escrow    core.Config
	Block     blockConfig
	Genesis   []genesisAccount
	Contracts []contractConfig
	Simulate  []simulateConfig
}

type blockConfig struct {
	Number uint64
	Time   uint64
}

type genesisAccount struct {
	Address common.Address
	Balance string
}

// contractConfig describes a contract deployed before any simulation. Code
// is the contract source for the js engine or a builtin name for the native
// one; CodeFile, when set, takes precedence and is read from disk.
type contractConfig struct {
	Name      string
	Code      string `toml:",omitempty"`
	CodeFile  string `toml:",omitempty"`
	Deployer  common.Address
	Endowment string
	Input     hexutil.Bytes `toml:",omitempty"`
	GasLimit  uint64        `toml:",omitempty"`
}

// simulateConfig describes one speculative chain. To is either a hex address
// or the name of a contract from the Contracts section.
type simulateConfig struct {
	Escrow    common.Address
	Requester common.Address
	To        string
	Dest      common.Address `toml:",omitempty"`
	Value     string         `toml:",omitempty"`
	Input     hexutil.Bytes  `toml:",omitempty"`
	GasLimit  uint64         `toml:",omitempty"`
}

const defaultGasLimit = 10_000_000

var defaultScenario = scenarioConfig{
	Escrow: core.DefaultConfig,
}

// loadScenario reads the scenario at path on top of the defaults.
func loadScenario(path string) (*scenarioConfig, error) {
	cfg := defaultScenario
	if path == "" {
		return &cfg, nil
	}
	if err := core.LoadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseValue reads a decimal or 0x-prefixed amount. An empty string is zero.
func parseValue(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	if len(s) > 1 && s[:2] == "0x" {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func (c *contractConfig) code() ([]byte, error) {
	if c.CodeFile != "" {
		return os.ReadFile(c.CodeFile)
	}
	if c.Code == "" {
		return nil, fmt.Errorf("contract %q has no code", c.Name)
	}
	return []byte(c.Code), nil
}

func (c *contractConfig) gasLimit() uint64 {
	if c.GasLimit == 0 {
		return defaultGasLimit
	}
	return c.GasLimit
}

var errUnknownContract = errors.New("unknown contract")

// resolve maps a hex address or deployed contract name to an address.
func resolve(to string, deployed map[string]common.Address) (common.Address, error) {
	if common.IsHexAddress(to) {
		return common.HexToAddress(to), nil
	}
	if addr, ok := deployed[to]; ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("%w: %q", errUnknownContract, to)
}
