package statebridge

import "github.com/ethereum/go-ethereum/common"

// Backend key layout. Trie ids are fixed-size hashes, so a storage prefix of
// one namespace never prefixes another.
var (
	storagePrefix  = []byte("s") // storagePrefix + trieID + key -> value
	contractPrefix = []byte("c") // contractPrefix + address -> rlp(contract info)
	codePrefix     = []byte("x") // codePrefix + code hash -> code
	trieSeqKey     = []byte("trie-seq")
)

// TrieIDLength is the size of every storage namespace id.
const TrieIDLength = common.HashLength

// StoragePrefix returns the key prefix shared by every slot of namespace trieID.
func StoragePrefix(trieID []byte) []byte {
	out := make([]byte, 0, len(storagePrefix)+len(trieID))
	out = append(out, storagePrefix...)
	return append(out, trieID...)
}

// StorageKey returns the backend key of slot key in namespace trieID.
func StorageKey(trieID []byte, key [32]byte) []byte {
	return append(StoragePrefix(trieID), key[:]...)
}

// ContractKey returns the backend key of the contract info of addr.
func ContractKey(addr common.Address) []byte {
	return append(append([]byte{}, contractPrefix...), addr.Bytes()...)
}

// CodeKey returns the backend key of the code stored under hash.
func CodeKey(hash common.Hash) []byte {
	return append(append([]byte{}, codePrefix...), hash.Bytes()...)
}
