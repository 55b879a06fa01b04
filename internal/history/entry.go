// Package history records the per-account effects of committed custom
// operations, plus a separate burn index, and serves newest-first queries
// over both.
//
// Key layout (relative to the indexer's namespace):
//
//	Account entry: "a/<revHeight8><revTxn4><owner>"        → JSON Entry
//	Owner index:   "o/<owner>\x00<revHeight8><revTxn4>"    → JSON Entry
//	Burn entry:    "b/<revHeight8><revTxn4>"               → JSON Entry
//	Height index:  "r/<height8><seq4>"                     → key written at that height
//	Block record:  "n/<height8>"                           → JSON blockRecord
//	Tip:           "m/tip"                                 → JSON blockRecord
//
// revHeight and revTxn are bitwise complements, so ascending iteration
// yields the newest entry first. The height index is not complemented and
// lets rollback visit only the heights it removes.
package history

import (
	"encoding/binary"
	"strings"

	"github.com/Klingon-tech/defiledger/pkg/types"
)

// BlockRewardType is the type recorded for coinbase credits. It is not a
// custom operation and so is not in the type registry.
const BlockRewardType = "blockReward"

// Entry is one recorded history row.
type Entry struct {
	Owner       string   `json:"owner"`
	BlockHeight uint64   `json:"blockHeight"`
	BlockHash   string   `json:"blockHash"`
	BlockTime   int64    `json:"blockTime"`
	Type        string   `json:"type"`
	TxN         uint32   `json:"txn"`
	TxID        string   `json:"txid"`
	Amounts     []string `json:"amounts"`
}

// Block identifies the block whose effects are being committed.
type Block struct {
	Height uint64
	Hash   types.Hash
	Time   int64
}

// Change is the balance delta of one owner. Amounts may be negative.
type Change struct {
	Owner   string
	Amounts []types.TokenAmount
}

// Effect is everything one committed operation did to accounts.
type Effect struct {
	TxN     uint32
	TxID    types.Hash
	Type    string
	Changes []Change
	// Burn is set when the operation destroyed supply to the burn sink.
	Burn *Change
}

type blockRecord struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"`
}

var (
	accountPrefix = []byte("a/")
	ownerPrefix   = []byte("o/")
	burnPrefix    = []byte("b/")
	heightPrefix  = []byte("r/")
	blockPrefix   = []byte("n/")
	tipKey        = []byte("m/tip")
)

func orderKey(height uint64, txn uint32) []byte {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], ^height)
	binary.BigEndian.PutUint32(buf[8:], ^txn)
	return buf[:]
}

func join(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func accountKey(height uint64, txn uint32, owner string) []byte {
	return join(accountPrefix, orderKey(height, txn), []byte(owner))
}

func ownerScanPrefix(owner string) []byte {
	return join(ownerPrefix, []byte(owner), []byte{0})
}

func ownerKey(owner string, height uint64, txn uint32) []byte {
	return join(ownerScanPrefix(owner), orderKey(height, txn))
}

func burnKey(height uint64, txn uint32) []byte {
	return join(burnPrefix, orderKey(height, txn))
}

func heightScanPrefix(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return join(heightPrefix, buf[:])
}

func heightKey(height uint64, seq uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], seq)
	return join(heightScanPrefix(height), buf[:])
}

func blockKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return join(blockPrefix, buf[:])
}

// mergeChanges folds repeated owners of one operation into a single change,
// keeping first-seen owner order.
func mergeChanges(changes []Change) []Change {
	idx := make(map[string]int, len(changes))
	var out []Change
	for _, c := range changes {
		if c.Owner == "" || len(c.Amounts) == 0 {
			continue
		}
		i, ok := idx[c.Owner]
		if !ok {
			idx[c.Owner] = len(out)
			out = append(out, Change{Owner: c.Owner, Amounts: append([]types.TokenAmount(nil), c.Amounts...)})
			continue
		}
		out[i].Amounts = addAmounts(out[i].Amounts, c.Amounts)
	}
	return out
}

func addAmounts(into, more []types.TokenAmount) []types.TokenAmount {
	for _, m := range more {
		found := false
		for j := range into {
			if into[j].Token == m.Token {
				into[j].Amount += m.Amount
				found = true
				break
			}
		}
		if !found {
			into = append(into, m)
		}
	}
	return into
}

func formatAmounts(amounts []types.TokenAmount) []string {
	out := make([]string, 0, len(amounts))
	for _, a := range amounts {
		if a.Amount == 0 {
			continue
		}
		out = append(out, a.String())
	}
	return out
}

// hasToken reports whether any amount is denominated in token.
func (e Entry) hasToken(token string) bool {
	for _, a := range e.Amounts {
		if _, sym, ok := strings.Cut(a, "@"); ok && sym == token {
			return true
		}
	}
	return false
}
