package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func heightKey(prefix string, h uint64) []byte {
	k := append([]byte(prefix), make([]byte, 8)...)
	binary.BigEndian.PutUint64(k[len(prefix):], h)
	return k
}

func TestDB_ReadWrite(t *testing.T) {
	blob := make([]byte, 256)
	for i := range blob {
		blob[i] = byte(i)
	}

	tests := []struct {
		name string
		key  []byte
		vals [][]byte // written in order, last one wins
		want []byte
	}{
		{"single", []byte("c/tip"), [][]byte{[]byte("abcd")}, []byte("abcd")},
		{"overwrite", []byte("a/owner"), [][]byte{[]byte("10"), []byte("25")}, []byte("25")},
		{"empty value", []byte("h/marker"), [][]byte{{}}, []byte{}},
		{"binary", []byte{0x00, 0x01, 0xFF}, [][]byte{blob}, blob},
	}

	eachBackend(t, func(t *testing.T, db DB) {
		for _, tt := range tests {
			for _, v := range tt.vals {
				if err := db.Put(tt.key, v); err != nil {
					t.Fatalf("%s: Put: %v", tt.name, err)
				}
			}
			got, err := db.Get(tt.key)
			if err != nil {
				t.Fatalf("%s: Get: %v", tt.name, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("%s: Get = %x, want %x", tt.name, got, tt.want)
			}
			if ok, err := db.Has(tt.key); err != nil || !ok {
				t.Errorf("%s: Has = %v, %v", tt.name, ok, err)
			}
		}
	})
}

func TestDB_MissingAndDelete(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		if _, err := db.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get missing = %v, want ErrNotFound", err)
		}
		if ok, err := db.Has([]byte("nope")); err != nil || ok {
			t.Errorf("Has missing = %v, %v", ok, err)
		}
		if err := db.Delete([]byte("never-written")); err != nil {
			t.Errorf("Delete missing: %v", err)
		}

		db.Put([]byte("t/gold"), []byte("1"))
		if err := db.Delete([]byte("t/gold")); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := db.Get([]byte("t/gold")); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Delete = %v, want ErrNotFound", err)
		}
	})
}

// History rows are keyed by big-endian height, so iteration order is
// block order.
func TestDB_ForEachHeightOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		for _, h := range []uint64{300, 2, 256, 1, 65536} {
			db.Put(heightKey("h/", h), []byte{byte(h)})
		}
		db.Put([]byte("hz"), []byte("outside"))
		db.Put([]byte("c/tip"), []byte("outside"))

		var got []uint64
		err := db.ForEach([]byte("h/"), func(key, _ []byte) error {
			got = append(got, binary.BigEndian.Uint64(key[2:]))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach: %v", err)
		}
		want := []uint64{1, 2, 256, 300, 65536}
		if len(got) != len(want) {
			t.Fatalf("ForEach heights = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("height[%d] = %d, want %d", i, got[i], want[i])
			}
		}

		n := 0
		db.ForEach([]byte("x/"), func(_, _ []byte) error { n++; return nil })
		if n != 0 {
			t.Errorf("ForEach over empty prefix visited %d keys", n)
		}
	})
}

func TestDB_ForEachCopiesKeys(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		db.Put([]byte("a/1"), []byte("x"))
		db.Put([]byte("a/2"), []byte("y"))

		var keys [][]byte
		db.ForEach([]byte("a/"), func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		})
		if len(keys) != 2 || string(keys[0]) != "a/1" || string(keys[1]) != "a/2" {
			t.Errorf("retained keys = %q", keys)
		}
	})
}

func TestBatch_BlockConnect(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		db.Put([]byte("a/spent"), []byte("5"))

		b := NewBatch(db)
		b.Put(heightKey("h/", 7), []byte("row"))
		b.Put([]byte("a/marker"), []byte{})
		b.Delete([]byte("a/spent"))

		if ok, _ := db.Has(heightKey("h/", 7)); ok {
			t.Error("batch write visible before Commit")
		}
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}

		if ok, _ := db.Has(heightKey("h/", 7)); !ok {
			t.Error("history row missing after Commit")
		}
		if ok, _ := db.Has([]byte("a/marker")); !ok {
			t.Error("empty-valued put missing after Commit")
		}
		if ok, _ := db.Has([]byte("a/spent")); ok {
			t.Error("deleted key survived Commit")
		}
	})
}

func TestPersistence(t *testing.T) {
	for _, backend := range []string{BackendBadger, BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			db, err := Open(backend, dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			b := NewBatch(db)
			b.Put([]byte("c/tip"), []byte("block-9"))
			if err := b.Commit(); err != nil {
				t.Fatal(err)
			}
			db.Close()

			db, err = Open(backend, dir)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer db.Close()
			got, err := db.Get([]byte("c/tip"))
			if err != nil || string(got) != "block-9" {
				t.Errorf("tip after reopen = %q, %v", got, err)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("rocks", t.TempDir()); err == nil {
		t.Error("Open with unknown backend should fail")
	}
}
