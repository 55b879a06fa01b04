// Package keystore holds the public key material the node owns and answers
// which addresses, in either space, resolve to a held key.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/internal/metrics"
	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// ErrNotFound is returned when no held key backs an address.
var ErrNotFound = errors.New("no key for address")

// ErrInvalidKey is returned when import text is neither a WIF nor a hex secret.
var ErrInvalidKey = errors.New("invalid private key encoding")

// PublicKeyRecord is the public material of one held key, with every
// address it owns.
type PublicKeyRecord struct {
	ID           crypto.KeyID
	Compressed   []byte
	Uncompressed []byte
	Addresses    []types.Address
	Label        string
}

// storedKey is the persisted form. Addresses are re-derived on load.
type storedKey struct {
	PubKey       string `json:"pubkey"`
	Uncompressed bool   `json:"uncompressed,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Store maps addresses to held keys. Each key material has exactly one
// record, named by its KeyID, no matter how it was imported.
type Store struct {
	mu      sync.RWMutex
	codec   *address.Codec
	db      storage.DB
	metrics *metrics.Metrics

	keys  map[crypto.KeyID]*entry
	index map[string]crypto.KeyID
	gen   uint64 // bumped whenever the owned address set grows
}

type entry struct {
	pub          *crypto.PublicKey
	uncompressed bool
	label        string
	addrs        []types.Address
}

// New creates a key store. db may be nil for a store that lives only in memory.
func New(codec *address.Codec, db storage.DB, m *metrics.Metrics) *Store {
	return &Store{
		codec:   codec,
		db:      db,
		metrics: m,
		keys:    make(map[crypto.KeyID]*entry),
		index:   make(map[string]crypto.KeyID),
	}
}

// Load restores every persisted key.
func (s *Store) Load() error {
	if s.db == nil {
		return nil
	}
	var loaded []storedKey
	err := s.db.ForEach(nil, func(_, value []byte) error {
		var sk storedKey
		if err := json.Unmarshal(value, &sk); err != nil {
			return fmt.Errorf("decode key record: %w", err)
		}
		loaded = append(loaded, sk)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sk := range loaded {
		raw, err := hex.DecodeString(sk.PubKey)
		if err != nil {
			return fmt.Errorf("decode stored pubkey: %w", err)
		}
		pub, err := crypto.ParsePublicKey(raw)
		if err != nil {
			return err
		}
		if _, err := s.insertLocked(pub, sk.Uncompressed, sk.Label); err != nil {
			return err
		}
	}
	s.metrics.SetKeys(len(s.keys))
	klog.Keys.Info().Int("keys", len(s.keys)).Msg("Key store loaded")
	return nil
}

// ImportPrivateKey imports a secret given as WIF or as 64 hex characters.
// Only the public half is retained.
func (s *Store) ImportPrivateKey(text, label string) (PublicKeyRecord, error) {
	text = strings.TrimSpace(text)

	pk, compressed, err := crypto.DecodeWIF(text, s.codec.Params().PrivateKeyID)
	if err != nil {
		if errors.Is(err, crypto.ErrWIFNetwork) {
			return PublicKeyRecord{}, err
		}
		if len(text) != 64 {
			return PublicKeyRecord{}, ErrInvalidKey
		}
		pk, err = crypto.PrivateKeyFromHex(text)
		if err != nil {
			return PublicKeyRecord{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		compressed = true
	}
	defer pk.Zero()

	return s.ImportPublicKey(pk.PublicKey(), !compressed, label)
}

// ImportPublicKey registers a public key. uncompressed marks a key whose
// legacy address was derived from the uncompressed encoding; that address
// is registered in addition to the standard forms.
//
// Re-importing known key material is idempotent: it reuses the existing
// record and only adds the address forms that were missing.
func (s *Store) ImportPublicKey(pub *crypto.PublicKey, uncompressed bool, label string) (PublicKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := pub.ID()
	prev, existed := s.keys[id]
	if existed {
		uncompressed = uncompressed || prev.uncompressed
		if label == "" {
			label = prev.label
		}
	}

	if s.db != nil {
		data, err := json.Marshal(storedKey{
			PubKey:       hex.EncodeToString(pub.Compressed()),
			Uncompressed: uncompressed,
			Label:        label,
		})
		if err != nil {
			return PublicKeyRecord{}, err
		}
		if err := s.db.Put(id[:], data); err != nil {
			return PublicKeyRecord{}, fmt.Errorf("persist key %s: %w", id, err)
		}
	}

	e, err := s.insertLocked(pub, uncompressed, label)
	if err != nil {
		return PublicKeyRecord{}, err
	}
	s.metrics.SetKeys(len(s.keys))
	klog.Keys.Debug().
		Str("key_id", id.String()).
		Bool("existing", existed).
		Int("addresses", len(e.addrs)).
		Msg("Key imported")
	return e.record(id), nil
}

// insertLocked builds the full entry before publishing it, so readers never
// see a key with only some of its addresses indexed.
func (s *Store) insertLocked(pub *crypto.PublicKey, uncompressed bool, label string) (*entry, error) {
	addrs, err := s.codec.KeyAddresses(pub, uncompressed)
	if err != nil {
		return nil, fmt.Errorf("derive addresses: %w", err)
	}
	id := pub.ID()
	e := &entry{pub: pub, uncompressed: uncompressed, label: label, addrs: addrs}
	s.keys[id] = e
	for _, a := range addrs {
		k := indexKey(a)
		if _, ok := s.index[k]; !ok {
			s.gen++
		}
		s.index[k] = id
	}
	return e, nil
}

// HasKey reports whether the key behind addr is held.
func (s *Store) HasKey(addr types.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[indexKey(addr)]
	return ok
}

// PublicKey returns the record of the key behind addr.
func (s *Store) PublicKey(addr types.Address) (PublicKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.index[indexKey(addr)]
	if !ok {
		return PublicKeyRecord{}, ErrNotFound
	}
	return s.keys[id].record(id), nil
}

// KeyByID returns the record for a key id.
func (s *Store) KeyByID(id crypto.KeyID) (PublicKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok {
		return PublicKeyRecord{}, ErrNotFound
	}
	return e.record(id), nil
}

// Addresses returns every owned address across all held keys.
func (s *Store) Addresses() []types.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Address, 0, len(s.index))
	for _, e := range s.keys {
		out = append(out, e.addrs...)
	}
	return out
}

// Len returns the number of distinct keys held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Generation changes whenever an address is added to the owned set, even
// when the number of keys stays the same.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (e *entry) record(id crypto.KeyID) PublicKeyRecord {
	addrs := make([]types.Address, len(e.addrs))
	copy(addrs, e.addrs)
	return PublicKeyRecord{
		ID:           id,
		Compressed:   e.pub.Compressed(),
		Uncompressed: e.pub.Uncompressed(),
		Addresses:    addrs,
		Label:        e.label,
	}
}

// indexKey identifies an address by space, type and payload. Text is not
// used, so case variants of the same address resolve alike.
func indexKey(a types.Address) string {
	return fmt.Sprintf("%d:%d:%x", a.Space, a.Type, a.Payload)
}
