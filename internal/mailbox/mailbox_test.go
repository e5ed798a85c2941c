package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMailbox_SingleShot(t *testing.T) {
	box := New[string]()

	if !box.Empty() {
		t.Fatal("new mailbox should be empty")
	}
	if _, ok := box.TryTake(); ok {
		t.Fatal("TryTake on empty mailbox should report false")
	}

	if !box.Put("result") {
		t.Fatal("first Put should succeed")
	}
	if box.Empty() {
		t.Fatal("mailbox should not be empty after Put")
	}

	v, ok := box.TryTake()
	if !ok || v != "result" {
		t.Fatalf("TryTake() = %q, %v; want result, true", v, ok)
	}

	// A second drain before any new push sees nothing.
	if !box.Empty() {
		t.Error("mailbox should be empty after the value was taken")
	}
	if v, ok := box.TryTake(); ok {
		t.Errorf("second TryTake() = %q, want nothing", v)
	}
}

func TestMailbox_SecondPutDropped(t *testing.T) {
	box := New[int]()

	box.Put(1)
	if box.Put(2) {
		t.Error("Put on a full mailbox should report false")
	}

	v, _ := box.TryTake()
	if v != 1 {
		t.Errorf("TryTake() = %d, want 1", v)
	}
}

func TestMailbox_CrossGoroutine(t *testing.T) {
	box := New[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		box.Put(42)
	}()

	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatal("value never arrived")
		case <-ticker.C:
			if v, ok := box.TryTake(); ok {
				if v != 42 {
					t.Errorf("got %d, want 42", v)
				}
				return
			}
		}
	}
}

func TestMailbox_Wait(t *testing.T) {
	box := New[string]()
	box.Put("done")

	v, err := box.Wait(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("Wait() = %q, %v", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := box.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() on cancelled context error = %v, want context.Canceled", err)
	}
}
