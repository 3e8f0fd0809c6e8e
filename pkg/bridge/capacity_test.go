package bridge

import (
	"errors"
	"testing"
)

func TestCapacityPool(t *testing.T) {
	p := NewCapacityPool(2)

	t1, err := p.Acquire()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	t2, err := p.Acquire()
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if _, err := p.Acquire(); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("third acquire err = %v", err)
	}
	if got := p.InUse(); got != 2 {
		t.Fatalf("in use = %d", got)
	}

	t.Run("release is exactly once", func(t *testing.T) {
		t1.Release()
		t1.Release()
		t1.Release()
		if got := p.InUse(); got != 1 {
			t.Fatalf("in use = %d, want 1", got)
		}
	})

	t.Run("freed slot is reusable", func(t *testing.T) {
		t3, err := p.Acquire()
		if err != nil {
			t.Fatalf("acquire after release: %v", err)
		}
		t3.Release()
		t2.Release()
		if got := p.InUse(); got != 0 {
			t.Fatalf("in use = %d, want 0", got)
		}
	})
}

func TestCloseCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrBadToken, CloseCodeBadToken},
		{ErrEnvMismatch, CloseCodeEnvMismatch},
		{ErrCapacityExceeded, CloseCodeCapacity},
		{errors.New("something else"), 1011},
	}
	for _, c := range cases {
		if got := closeCodeFor(c.err); got != c.want {
			t.Errorf("closeCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
