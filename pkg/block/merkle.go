package block

import (
	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ComputeMerkleRoot folds transaction ids pairwise into one root. An odd
// level repeats its last hash. No ids gives the zero hash; one id is its
// own root.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash {
	if len(txHashes) == 0 {
		return types.Hash{}
	}
	level := append([]types.Hash(nil), txHashes...)
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.HashConcat(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}
