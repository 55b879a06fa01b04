package keystore

import (
	"errors"
	"sync"
	"testing"

	"github.com/Klingon-tech/defiledger/internal/storage"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

const (
	testPrivHex       = "2468918553ca24474efea1e6a3641a1302bd643d15c13a6dbe89b8da38c90b3c"
	testWIF           = "cNoUVyyacpVBpotBGxrnM5XXekdqV8qgnowVQfgCvDWVU9jn4gUz"
	testWIFUncomp     = "91rxAjpFsFqXYgAnNk1rhM4HuxeoL4b97JS2uVFKZSwiLrD7THY"
	testBech32        = "bcrt1qmhpq9hxgdglwja6uruc92yne8ekxljgykrfta5"
	testLegacy        = "n1jW3ahFo5Q2LERVEEmj76Ap95L4367Wfg"
	testLegacyUncomp  = "n32jT7A5sv6t9Hm2NAYK6juuwsCdsWe1SF"
	testEth           = "0xfD0766e7aBe123A25c73c95f6dc3eDe26D0b7263"
	testOtherBech32   = "bcrt1qtqggfdte5jp8duffzmt54aqtqwlv3l8xsjdrhf"
	mainnetWIFForTest = "KxSV34yjBknvfNQutZ3eym2U2XLRpgjzimo2JFDhR6rVDQkSKeEt"
)

func newTestStore(t *testing.T, db storage.DB) (*Store, *address.Codec) {
	t.Helper()
	p := address.RegTestParams
	codec := address.NewCodec(&p)
	return New(codec, db, nil), codec
}

func decode(t *testing.T, c *address.Codec, text string) types.Address {
	t.Helper()
	a, err := c.Decode(text)
	if err != nil {
		t.Fatalf("Decode(%s): %v", text, err)
	}
	return a
}

func TestImportPrivateKey_RegistersAllForms(t *testing.T) {
	s, c := newTestStore(t, nil)
	rec, err := s.ImportPrivateKey(testPrivHex, "k1")
	if err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	if len(rec.Addresses) != 4 {
		t.Errorf("record has %d addresses, want 4", len(rec.Addresses))
	}
	for _, text := range []string{testBech32, testLegacy, testEth} {
		if !s.HasKey(decode(t, c, text)) {
			t.Errorf("HasKey(%s) = false", text)
		}
	}
	if s.HasKey(decode(t, c, testOtherBech32)) {
		t.Error("HasKey for an unknown key should be false")
	}
}

func TestImport_OrderIndependent(t *testing.T) {
	orders := [][]string{
		{testPrivHex, testWIF},
		{testWIF, testPrivHex},
	}
	for _, order := range orders {
		s, c := newTestStore(t, nil)
		var ids []string
		for _, text := range order {
			rec, err := s.ImportPrivateKey(text, "")
			if err != nil {
				t.Fatalf("ImportPrivateKey(%s): %v", text, err)
			}
			ids = append(ids, rec.ID.String())
		}
		if ids[0] != ids[1] {
			t.Errorf("order %v gave different key ids %v", order, ids)
		}
		if s.Len() != 1 {
			t.Errorf("order %v: Len() = %d, want 1", order, s.Len())
		}
		if !s.HasKey(decode(t, c, testEth)) {
			t.Errorf("order %v: secondary address not owned", order)
		}
	}
}

func TestImport_WIFOnlyOwnsSecondary(t *testing.T) {
	s, c := newTestStore(t, nil)
	if _, err := s.ImportPrivateKey(testWIF, ""); err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	rec, err := s.PublicKey(decode(t, c, testEth))
	if err != nil {
		t.Fatalf("PublicKey(eth): %v", err)
	}
	if rec.ID.String() != "ddc202dcc86a3ee9775c1f305512793e6c6fc904" {
		t.Errorf("key id = %s", rec.ID)
	}
}

func TestImport_UncompressedWIF(t *testing.T) {
	s, c := newTestStore(t, nil)
	if _, err := s.ImportPrivateKey(testWIFUncomp, ""); err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	a, err := s.PublicKey(decode(t, c, testLegacyUncomp))
	if err != nil {
		t.Fatalf("PublicKey(uncompressed legacy): %v", err)
	}
	b, err := s.PublicKey(decode(t, c, testBech32))
	if err != nil {
		t.Fatalf("PublicKey(bech32): %v", err)
	}
	if a.ID != b.ID {
		t.Error("uncompressed and compressed forms must resolve to the same key")
	}

	// A later compressed import keeps the uncompressed legacy form.
	if _, err := s.ImportPrivateKey(testWIF, ""); err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	if !s.HasKey(decode(t, c, testLegacyUncomp)) {
		t.Error("re-import dropped uncompressed legacy address")
	}
}

func TestGeneration_TracksAddressSet(t *testing.T) {
	s, _ := newTestStore(t, nil)
	g0 := s.Generation()

	if _, err := s.ImportPrivateKey(testWIF, ""); err != nil {
		t.Fatal(err)
	}
	g1 := s.Generation()
	if g1 == g0 {
		t.Fatal("first import left the generation unchanged")
	}

	if _, err := s.ImportPrivateKey(testPrivHex, ""); err != nil {
		t.Fatal(err)
	}
	if s.Generation() != g1 {
		t.Error("re-importing the same forms bumped the generation")
	}

	if _, err := s.ImportPrivateKey(testWIFUncomp, ""); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("keys = %d, want 1", s.Len())
	}
	if s.Generation() == g1 {
		t.Error("uncompressed legacy form added without a generation change")
	}
}

func TestImportPrivateKey_Invalid(t *testing.T) {
	s, _ := newTestStore(t, nil)
	if _, err := s.ImportPrivateKey("not-a-key", ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("garbage import error = %v, want ErrInvalidKey", err)
	}
	if _, err := s.ImportPrivateKey(mainnetWIFForTest, ""); err == nil {
		t.Error("mainnet WIF on regtest should fail")
	}
	if s.Len() != 0 {
		t.Errorf("failed imports left %d keys", s.Len())
	}
}

func TestPublicKey_NotFound(t *testing.T) {
	s, c := newTestStore(t, nil)
	if _, err := s.PublicKey(decode(t, c, testEth)); !errors.Is(err, ErrNotFound) {
		t.Errorf("PublicKey error = %v, want ErrNotFound", err)
	}
}

func TestStore_Persistence(t *testing.T) {
	db := storage.NewMemory()
	s, c := newTestStore(t, storage.NewPrefixDB(db, []byte("k/")))
	if _, err := s.ImportPrivateKey(testWIFUncomp, "saved"); err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}

	reloaded, _ := newTestStore(t, storage.NewPrefixDB(db, []byte("k/")))
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec, err := reloaded.PublicKey(decode(t, c, testLegacyUncomp))
	if err != nil {
		t.Fatalf("PublicKey after reload: %v", err)
	}
	if rec.Label != "saved" {
		t.Errorf("label = %q, want saved", rec.Label)
	}
}

func TestRecord_IsCopy(t *testing.T) {
	s, c := newTestStore(t, nil)
	s.ImportPrivateKey(testPrivHex, "")
	rec, _ := s.PublicKey(decode(t, c, testBech32))
	rec.Addresses[0] = types.Address{}
	rec2, _ := s.PublicKey(decode(t, c, testBech32))
	if rec2.Addresses[0].Text == "" {
		t.Error("mutating a returned record changed the store")
	}
}

func TestStore_ConcurrentReadsDuringImport(t *testing.T) {
	s, c := newTestStore(t, nil)
	eth := decode(t, c, testEth)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rec, err := s.PublicKey(eth)
				if err == nil && len(rec.Addresses) != 4 {
					t.Errorf("partial record observed: %d addresses", len(rec.Addresses))
				}
			}
		}()
	}
	if _, err := s.ImportPrivateKey(testPrivHex, ""); err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	close(stop)
	wg.Wait()
}
