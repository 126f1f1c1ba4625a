package vm

// Schedule lists the gas charged for host operations. Prices are flat per
// operation plus a per-byte component where payload size matters.
type Schedule struct {
	CallBaseCost        uint64 `toml:",omitempty"`
	InstantiateBaseCost uint64 `toml:",omitempty"`
	TransferCost        uint64 `toml:",omitempty"`
	StorageReadCost     uint64 `toml:",omitempty"`
	StorageWriteCost    uint64 `toml:",omitempty"`
	StorageWritePerByte uint64 `toml:",omitempty"`
	EventBaseCost       uint64 `toml:",omitempty"`
	EventPerByte        uint64 `toml:",omitempty"`
	HostFnCost          uint64 `toml:",omitempty"`
	TerminateCost       uint64 `toml:",omitempty"`
	RestoreCost         uint64 `toml:",omitempty"`
}

// DefaultSchedule is the gas schedule used when the configuration does not
// override it.
var DefaultSchedule = Schedule{
	CallBaseCost:        135,
	InstantiateBaseCost: 175,
	TransferCost:        100,
	StorageReadCost:     50,
	StorageWriteCost:    100,
	StorageWritePerByte: 1,
	EventBaseCost:       80,
	EventPerByte:        1,
	HostFnCost:          5,
	TerminateCost:       120,
	RestoreCost:         200,
}

// storageWriteCost prices a write of size bytes.
func (s *Schedule) storageWriteCost(size int) uint64 {
	return s.StorageWriteCost + uint64(size)*s.StorageWritePerByte
}

// eventCost prices an event carrying topics and data.
func (s *Schedule) eventCost(topics, size int) uint64 {
	return s.EventBaseCost + uint64(topics*32+size)*s.EventPerByte
}
