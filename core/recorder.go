package core

import (
	"encoding/json"
	"errors"
	"io"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// TransferEntry is a transfer that would reach To if the trace were applied.
// The value itself has already been moved from the requester to the escrow
// account when the entry is recorded.
type TransferEntry struct {
	To    common.Address
	Value *uint256.Int
	Data  []byte
}

// DeferredStorageWrite is a storage write intercepted during speculative
// execution. A nil Value records a deletion.
type DeferredStorageWrite struct {
	Dest   common.Address
	TrieID []byte
	Key    [32]byte
	Value  []byte
}

// storageWriteRLP carries the optional value as a list of zero or one items.
type storageWriteRLP struct {
	Dest   common.Address
	TrieID []byte
	Key    [32]byte
	Value  [][]byte
}

// EncodeRLP implements rlp.Encoder.
func (w DeferredStorageWrite) EncodeRLP(wr io.Writer) error {
	enc := storageWriteRLP{Dest: w.Dest, TrieID: w.TrieID, Key: w.Key}
	if w.Value != nil {
		enc.Value = [][]byte{w.Value}
	}
	return rlp.Encode(wr, &enc)
}

// DecodeRLP implements rlp.Decoder.
func (w *DeferredStorageWrite) DecodeRLP(s *rlp.Stream) error {
	var dec storageWriteRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	*w = DeferredStorageWrite{Dest: dec.Dest, TrieID: dec.TrieID, Key: dec.Key}
	switch len(dec.Value) {
	case 0:
	case 1:
		w.Value = dec.Value[0]
		if w.Value == nil {
			w.Value = []byte{}
		}
	default:
		return errors.New("storage write carries more than one value")
	}
	return nil
}

// CallStamp records a call attempt: the callee and its storage root at the
// time of the call.
type CallStamp struct {
	Storage common.Hash    `json:"storage"`
	Dest    common.Address `json:"dest"`
}

// Trace is the output of one speculative call chain.
type Trace struct {
	Transfers []TransferEntry
	Writes    []DeferredStorageWrite
	Stamps    []CallStamp
}

// Recorder accumulates the trace of a call chain. Every frame of the chain
// appends to the same recorder, in call order. Entries are never modified
// once appended.
//
// A Recorder is owned by the caller that starts the chain and is not safe for
// concurrent use.
type Recorder struct {
	Trace
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return new(Recorder)
}

func (r *Recorder) appendTransfer(to common.Address, value *uint256.Int, data []byte) {
	r.Transfers = append(r.Transfers, TransferEntry{
		To:    to,
		Value: new(uint256.Int).Set(value),
		Data:  common.CopyBytes(data),
	})
}

func (r *Recorder) appendWrite(dest common.Address, trieID []byte, key [32]byte, value []byte) {
	w := DeferredStorageWrite{Dest: dest, TrieID: common.CopyBytes(trieID), Key: key}
	if value != nil {
		w.Value = append([]byte{}, value...)
	}
	r.Writes = append(r.Writes, w)
}

func (r *Recorder) pushStamp(storage common.Hash, dest common.Address) {
	r.Stamps = append(r.Stamps, CallStamp{Storage: storage, Dest: dest})
}

// Len returns the number of transfers, writes and stamps recorded.
func (r *Recorder) Len() (transfers, writes, stamps int) {
	return len(r.Transfers), len(r.Writes), len(r.Stamps)
}

// TouchedContracts returns the set of contracts the chain called or wrote to.
func (r *Recorder) TouchedContracts() mapset.Set[common.Address] {
	set := mapset.NewThreadUnsafeSet[common.Address]()
	for _, s := range r.Stamps {
		set.Add(s.Dest)
	}
	for _, w := range r.Writes {
		set.Add(w.Dest)
	}
	return set
}

// EncodeTrace returns the RLP encoding of t.
func EncodeTrace(t *Trace) ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// DecodeTrace parses an RLP encoded trace.
func DecodeTrace(b []byte) (*Trace, error) {
	t := new(Trace)
	if err := rlp.DecodeBytes(b, t); err != nil {
		return nil, err
	}
	return t, nil
}

type transferJSON struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

type storageWriteJSON struct {
	Dest   common.Address `json:"dest"`
	TrieID hexutil.Bytes  `json:"trieId"`
	Key    common.Hash    `json:"key"`
	Value  *hexutil.Bytes `json:"value"`
}

type traceJSON struct {
	Transfers []transferJSON     `json:"transfers"`
	Writes    []storageWriteJSON `json:"writes"`
	Stamps    []CallStamp        `json:"stamps"`
}

// MarshalJSON renders the trace with hex encoded fields. A deleted storage
// value is rendered as null.
func (t Trace) MarshalJSON() ([]byte, error) {
	enc := traceJSON{
		Transfers: make([]transferJSON, 0, len(t.Transfers)),
		Writes:    make([]storageWriteJSON, 0, len(t.Writes)),
		Stamps:    t.Stamps,
	}
	if enc.Stamps == nil {
		enc.Stamps = []CallStamp{}
	}
	for _, tr := range t.Transfers {
		enc.Transfers = append(enc.Transfers, transferJSON{
			To:    tr.To,
			Value: (*hexutil.Big)(tr.Value.ToBig()),
			Data:  tr.Data,
		})
	}
	for _, w := range t.Writes {
		sw := storageWriteJSON{Dest: w.Dest, TrieID: w.TrieID, Key: common.Hash(w.Key)}
		if w.Value != nil {
			v := hexutil.Bytes(w.Value)
			sw.Value = &v
		}
		enc.Writes = append(enc.Writes, sw)
	}
	return json.Marshal(&enc)
}
