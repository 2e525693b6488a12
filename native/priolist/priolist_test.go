package priolist

import (
	"math/big"
	"testing"
)

func TestSortAscendingKeyDescendingValue(t *testing.T) {
	l := New(5)
	if err := l.Set(0, 300, big.NewInt(10)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := l.Set(1, 100, big.NewInt(50)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := l.Set(2, 100, big.NewInt(75)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := l.Set(3, 200, big.NewInt(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Slot 4 stays unwritten and must sort last.

	l.Sort()

	want := []struct {
		key   uint16
		value int64
	}{
		{100, 75},
		{100, 50},
		{200, 1},
		{300, 10},
	}
	for i, w := range want {
		key, value, ok := l.Get(i)
		if !ok {
			t.Fatalf("entry %d missing", i)
		}
		if key != w.key || value.Cmp(big.NewInt(w.value)) != 0 {
			t.Fatalf("entry %d: got (%d, %s), want (%d, %d)", i, key, value, w.key, w.value)
		}
	}
	if _, _, ok := l.Get(4); ok {
		t.Fatalf("unwritten slot must stay empty after sort")
	}
}

func TestZeroKeyZeroValueSortsBeforeEmpty(t *testing.T) {
	l := New(2)
	if err := l.Set(0, 0, big.NewInt(0)); err != nil {
		t.Fatalf("set: %v", err)
	}
	l.Sort()
	key, value, ok := l.Get(0)
	if !ok || key != 0 || value.Sign() != 0 {
		t.Fatalf("written zero entry lost: key=%d value=%v ok=%v", key, value, ok)
	}
	if _, _, ok := l.Get(1); ok {
		t.Fatalf("empty slot must sort after the written zero entry")
	}
}

func TestSetRejectsOversizedValue(t *testing.T) {
	l := New(1)
	huge := new(big.Int).Lsh(big.NewInt(1), 224)
	if err := l.Set(0, 1, huge); err != ErrValueTooLarge {
		t.Fatalf("expected oversized value rejection, got %v", err)
	}
	if err := l.Set(1, 1, big.NewInt(1)); err != ErrIndexOutOfRange {
		t.Fatalf("expected index range rejection, got %v", err)
	}
}
