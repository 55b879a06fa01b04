package storage

import (
	"errors"
	"fmt"
	"testing"
)

// eachBackend runs fn against a fresh database of every backend.
func eachBackend(t *testing.T, fn func(t *testing.T, db DB)) {
	t.Helper()
	for _, backend := range []string{BackendMemory, BackendBadger, BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			db, err := Open(backend, t.TempDir())
			if err != nil {
				t.Fatalf("Open(%q): %v", backend, err)
			}
			defer db.Close()
			fn(t, db)
		})
	}
}

// The node shares one database between the chain (c/ a/ t/), the history
// index (h/) and the key store (k/).
var ledgerNamespaces = []string{"c/", "a/", "t/", "h/", "k/"}

func TestPrefixDB_NamespacesIsolated(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		for _, ns := range ledgerNamespaces {
			if err := NewPrefixDB(db, []byte(ns)).Put([]byte("tip"), []byte(ns)); err != nil {
				t.Fatalf("Put in %s: %v", ns, err)
			}
		}
		// A root key that looks like a namespaced one must stay outside it.
		if err := db.Put([]byte("h"), []byte("root")); err != nil {
			t.Fatal(err)
		}

		for _, ns := range ledgerNamespaces {
			p := NewPrefixDB(db, []byte(ns))
			got, err := p.Get([]byte("tip"))
			if err != nil || string(got) != ns {
				t.Errorf("%s tip = %q, %v", ns, got, err)
			}
			n := 0
			p.ForEach(nil, func(key, _ []byte) error {
				n++
				if string(key) != "tip" {
					t.Errorf("%s ForEach key = %q, want prefix stripped", ns, key)
				}
				return nil
			})
			if n != 1 {
				t.Errorf("%s holds %d keys, want 1", ns, n)
			}
		}

		keys := NewPrefixDB(db, []byte("k/"))
		if err := keys.Delete([]byte("tip")); err != nil {
			t.Fatal(err)
		}
		if ok, _ := keys.Has([]byte("tip")); ok {
			t.Error("k/tip still present after Delete")
		}
		if ok, _ := NewPrefixDB(db, []byte("h/")).Has([]byte("tip")); !ok {
			t.Error("deleting k/tip removed h/tip")
		}
		if _, err := keys.Get([]byte("tip")); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get deleted key err = %v, want ErrNotFound", err)
		}
	})
}

func TestPrefixDB_ForEachOrderAndStop(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		hist := NewPrefixDB(db, []byte("h/"))
		for _, k := range []string{"o/b", "o/a", "o/c", "x/z"} {
			hist.Put([]byte(k), []byte(k))
		}

		var got []string
		err := hist.ForEach([]byte("o/"), func(key, _ []byte) error {
			got = append(got, string(key))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach: %v", err)
		}
		if fmt.Sprint(got) != "[o/a o/b o/c]" {
			t.Errorf("ForEach order = %v", got)
		}

		stop := errors.New("stop")
		calls := 0
		err = hist.ForEach([]byte("o/"), func(_, _ []byte) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("ForEach stop: err = %v after %d calls", err, calls)
		}
	})
}

// A block commit writes several namespaces through one root batch.
func TestPrefixDB_WrapBatchAcrossNamespaces(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		blocks := NewPrefixDB(db, []byte("c/"))
		balances := NewPrefixDB(db, []byte("a/"))
		hist := NewPrefixDB(db, []byte("h/"))
		balances.Put([]byte("stale"), []byte("1"))

		root := NewBatch(db)
		blocks.WrapBatch(root).Put([]byte("tip"), []byte("b1"))
		balances.WrapBatch(root).Delete([]byte("stale"))
		hist.WrapBatch(root).Put([]byte("e/1"), []byte("entry"))

		if ok, _ := blocks.Has([]byte("tip")); ok {
			t.Fatal("batched write visible before Commit")
		}
		if err := root.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}

		if v, _ := blocks.Get([]byte("tip")); string(v) != "b1" {
			t.Errorf("c/tip = %q", v)
		}
		if v, _ := hist.Get([]byte("e/1")); string(v) != "entry" {
			t.Errorf("h/e/1 = %q", v)
		}
		if ok, _ := balances.Has([]byte("stale")); ok {
			t.Error("a/stale survived the batch delete")
		}
		if ok, _ := db.Has([]byte("h/e/1")); !ok {
			t.Error("namespaced key not stored under its prefix")
		}
	})
}

func TestPrefixDB_NewBatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		keys := NewPrefixDB(db, []byte("k/"))
		b := keys.NewBatch()
		b.Put([]byte("a"), []byte("1"))
		b.Put([]byte("b"), []byte{})
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if ok, _ := keys.Has([]byte("b")); !ok {
			t.Error("empty value lost in batch")
		}
		if ok, _ := db.Has([]byte("k/a")); !ok {
			t.Error("batch did not apply the prefix")
		}
	})
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	eachBackend(t, func(t *testing.T, db DB) {
		hist := NewPrefixDB(db, []byte("h/"))
		keys := NewPrefixDB(db, []byte("k/"))
		for i := 0; i < 50; i++ {
			hist.Put([]byte(fmt.Sprintf("e/%03d", i)), []byte("x"))
		}
		keys.Put([]byte("rec"), []byte("pub"))

		if err := hist.DeleteAll(); err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		n := 0
		hist.ForEach(nil, func(_, _ []byte) error { n++; return nil })
		if n != 0 {
			t.Errorf("%d keys left in h/", n)
		}
		if ok, _ := keys.Has([]byte("rec")); !ok {
			t.Error("DeleteAll on h/ removed k/rec")
		}
		if err := NewPrefixDB(db, []byte("empty/")).DeleteAll(); err != nil {
			t.Errorf("DeleteAll on empty namespace: %v", err)
		}
	})
}

func TestPrefixDB_CloseLeavesInnerOpen(t *testing.T) {
	inner := NewMemory()
	p := NewPrefixDB(inner, []byte("k/"))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := inner.Put([]byte("still"), []byte("open")); err != nil {
		t.Errorf("inner DB unusable after PrefixDB.Close: %v", err)
	}
}
