package statebridge

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NewTrieID allocates a fresh storage namespace for a contract at addr.
//
// The id is keccak(addr || seq) where seq is a counter kept in the overlay
// itself. A namespace allocated inside a discarded scope is therefore handed
// out again by the next allocation, which keeps replayed executions
// deterministic.
func NewTrieID(o *Overlay, addr common.Address) ([]byte, error) {
	seq, err := trieSeq(o)
	if err != nil {
		return nil, err
	}
	seq++
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], seq)
	o.Put(trieSeqKey, enc[:])
	return crypto.Keccak256(addr.Bytes(), enc[:]), nil
}

func trieSeq(o *Overlay) (uint64, error) {
	raw, err := o.Get(trieSeqKey)
	if err != nil {
		return 0, err
	}
	switch len(raw) {
	case 0:
		return 0, nil
	case 8:
		return binary.BigEndian.Uint64(raw), nil
	default:
		return 0, fmt.Errorf("corrupt trie sequence: %x", raw)
	}
}
