package core

import (
	"errors"
	"fmt"
	"io"

	statebridge "github.com/clydemeng/bsc-escrow/state_bridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var errUnknownContractKind = errors.New("unknown contract info kind")

// AliveContractInfo describes a callable contract.
type AliveContractInfo struct {
	TrieID        []byte
	CodeHash      common.Hash
	StorageSize   uint64 // Total bytes of storage values, billed by rent
	RentAllowance *uint256.Int
	DeductBlock   uint64 // Block up to which rent has been paid
}

// TombstoneContractInfo is what remains of a contract evicted for unpaid
// rent. Hash commits to the storage root and code hash at eviction.
type TombstoneContractInfo struct {
	Hash common.Hash
}

// ContractInfo is either alive or a tombstone. A missing contract is
// represented by a nil *ContractInfo.
type ContractInfo struct {
	Alive     *AliveContractInfo
	Tombstone *TombstoneContractInfo
}

const (
	kindAlive uint8 = iota
	kindTombstone
)

type storedContractInfo struct {
	Kind uint8
	Body rlp.RawValue
}

// EncodeRLP implements rlp.Encoder.
func (c *ContractInfo) EncodeRLP(w io.Writer) error {
	var (
		enc storedContractInfo
		err error
	)
	switch {
	case c.Alive != nil:
		enc.Kind = kindAlive
		enc.Body, err = rlp.EncodeToBytes(c.Alive)
	case c.Tombstone != nil:
		enc.Kind = kindTombstone
		enc.Body, err = rlp.EncodeToBytes(c.Tombstone)
	default:
		return errors.New("empty contract info")
	}
	if err != nil {
		return err
	}
	return rlp.Encode(w, &enc)
}

// DecodeRLP implements rlp.Decoder.
func (c *ContractInfo) DecodeRLP(s *rlp.Stream) error {
	var dec storedContractInfo
	if err := s.Decode(&dec); err != nil {
		return err
	}
	*c = ContractInfo{}
	switch dec.Kind {
	case kindAlive:
		c.Alive = new(AliveContractInfo)
		return rlp.DecodeBytes(dec.Body, c.Alive)
	case kindTombstone:
		c.Tombstone = new(TombstoneContractInfo)
		return rlp.DecodeBytes(dec.Body, c.Tombstone)
	}
	return fmt.Errorf("%w: %d", errUnknownContractKind, dec.Kind)
}

// Directory stores contract infos in the overlay, so instantiation, rent
// payment and eviction are as provisional as contract storage.
type Directory struct {
	overlay *statebridge.Overlay
	config  *Config
}

// NewDirectory returns a directory over overlay.
func NewDirectory(overlay *statebridge.Overlay, config *Config) *Directory {
	return &Directory{overlay: overlay, config: config}
}

// Lookup returns the contract info of addr, or nil if there is none.
func (d *Directory) Lookup(addr common.Address) (*ContractInfo, error) {
	raw, err := d.overlay.Get(statebridge.ContractKey(addr))
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	info := new(ContractInfo)
	if err := rlp.DecodeBytes(raw, info); err != nil {
		return nil, fmt.Errorf("contract info of %s: %w", addr, err)
	}
	return info, nil
}

// Put stores info for addr.
func (d *Directory) Put(addr common.Address, info *ContractInfo) error {
	enc, err := rlp.EncodeToBytes(info)
	if err != nil {
		return err
	}
	d.overlay.Put(statebridge.ContractKey(addr), enc)
	return nil
}

// Remove deletes the info of addr.
func (d *Directory) Remove(addr common.Address) {
	d.overlay.Delete(statebridge.ContractKey(addr))
}

// StorageSize sums the value lengths stored in namespace trieID.
func (d *Directory) StorageSize(trieID []byte) (uint64, error) {
	entries, err := d.overlay.Collect(statebridge.StoragePrefix(trieID))
	if err != nil {
		return 0, err
	}
	var size uint64
	for _, v := range entries {
		size += uint64(len(v))
	}
	return size, nil
}

// tombstoneHash commits to the storage root and code of an evicted contract.
func tombstoneHash(storageRoot, codeHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(storageRoot.Bytes(), codeHash.Bytes())
}
