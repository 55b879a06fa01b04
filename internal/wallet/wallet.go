package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	klog "github.com/Klingon-tech/defiledger/internal/log"
	"github.com/Klingon-tech/defiledger/pkg/crypto"
)

// fileVersion is the on-disk format version.
const fileVersion = 1

// walletFile is the on-disk JSON format.
type walletFile struct {
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	Seed              *Sealed   `json:"seed"`
	NextExternalIndex uint32    `json:"next_external_index"`
}

// Wallet owns the HD seed and hands out fresh keys along the external
// BIP-44 chain. The index is persisted before a key is returned, so a key
// is never handed out twice.
type Wallet struct {
	mu     sync.Mutex
	path   string
	file   walletFile
	master *HDKey
}

// Open loads the wallet at path, creating it from a new mnemonic if the
// file does not exist. The mnemonic is returned only on creation.
func Open(path string, passphrase []byte, params KDFParams) (*Wallet, string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return create(path, passphrase, params)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read wallet: %w", err)
	}

	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, "", fmt.Errorf("parse wallet: %w", err)
	}
	if wf.Version != fileVersion {
		return nil, "", fmt.Errorf("unsupported wallet version: %d", wf.Version)
	}
	if wf.Seed == nil {
		return nil, "", fmt.Errorf("wallet has no seed")
	}
	seed, err := wf.Seed.Open(passphrase)
	if err != nil {
		return nil, "", err
	}
	defer zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, "", err
	}
	return &Wallet{path: path, file: wf, master: master}, "", nil
}

// FromMnemonic creates a wallet file at path from an existing mnemonic.
func FromMnemonic(path, mnemonic string, passphrase []byte, params KDFParams) (*Wallet, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet %s already exists", path)
	}
	return build(path, mnemonic, passphrase, params)
}

func create(path string, passphrase []byte, params KDFParams) (*Wallet, string, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, "", err
	}
	w, err := build(path, mnemonic, passphrase, params)
	if err != nil {
		return nil, "", err
	}
	klog.Wallet.Info().Str("path", path).Msg("Wallet created")
	return w, mnemonic, nil
}

func build(path, mnemonic string, passphrase []byte, params KDFParams) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(seed, passphrase, params)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}
	w := &Wallet{
		path:   path,
		master: master,
		file: walletFile{
			Version:   fileVersion,
			CreatedAt: time.Now().UTC(),
			Seed:      sealed,
		},
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}
	if err := w.writeLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// NextKey derives the next unused external key. The caller owns the
// returned key and should Zero it when done.
func (w *Wallet) NextKey() (*crypto.PrivateKey, uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	index := w.file.NextExternalIndex
	child, err := w.master.DeriveAccountKey(0, ChangeExternal, index)
	if err != nil {
		return nil, 0, err
	}
	priv, err := child.PrivateKey()
	if err != nil {
		return nil, 0, err
	}

	w.file.NextExternalIndex++
	if err := w.writeLocked(); err != nil {
		w.file.NextExternalIndex--
		priv.Zero()
		return nil, 0, err
	}
	return priv, index, nil
}

// KeyAt re-derives the external key at index.
func (w *Wallet) KeyAt(index uint32) (*crypto.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	child, err := w.master.DeriveAccountKey(0, ChangeExternal, index)
	if err != nil {
		return nil, err
	}
	return child.PrivateKey()
}

// NextIndex returns the index the next NextKey call will use.
func (w *Wallet) NextIndex() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.NextExternalIndex
}

// Path returns the wallet file path.
func (w *Wallet) Path() string {
	return w.path
}

func (w *Wallet) writeLocked() error {
	data, err := json.MarshalIndent(&w.file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}
