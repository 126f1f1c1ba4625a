package core

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/clydemeng/bsc-escrow/core/vm"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"
)

// Config holds the chain parameters a call chain runs under.
type Config struct {
	MaxDepth           int    // Maximum nesting of calls, the top-level call being depth 0
	ExistentialDeposit uint64 // Minimum balance keeping an account alive
	TombstoneDeposit   uint64 // Deposit a contract must keep on top of the existential deposit
	RentByteFee        uint64 // Rent per byte of contract storage per block
	MaxValueSize       uint32 // Largest storage value a contract may write
	WeightPrice        uint64 // Price of one unit of weight
	CacheSize          int    `toml:",omitempty"` // Backend read cache, in bytes
	Engine             string // Executor backend, see vm.NewExecutor
	Schedule           vm.Schedule
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	MaxDepth:           32,
	ExistentialDeposit: 100,
	TombstoneDeposit:   16,
	RentByteFee:        1,
	MaxValueSize:       16 * 1024,
	WeightPrice:        1,
	CacheSize:          32 * 1024 * 1024,
	Engine:             vm.DefaultEngine,
	Schedule:           vm.DefaultSchedule,
}

// SubsistenceThreshold is the balance under which a requester may not fund
// an escrow transfer and a contract cannot pay its rent.
func (c *Config) SubsistenceThreshold() *uint256.Int {
	return new(uint256.Int).Add(uint256.NewInt(c.ExistentialDeposit), uint256.NewInt(c.TombstoneDeposit))
}

func (c *Config) existentialDeposit() *uint256.Int { return uint256.NewInt(c.ExistentialDeposit) }

func (c *Config) tombstoneDeposit() *uint256.Int { return uint256.NewInt(c.TombstoneDeposit) }

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// LoadConfig decodes the TOML file at path into cfg. Fields missing from the
// file keep the value cfg already holds.
func LoadConfig(path string, cfg interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

// DumpConfig encodes cfg as TOML.
func DumpConfig(cfg interface{}) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}
