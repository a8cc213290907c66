package visibility

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExtender struct {
	calls   atomic.Int32
	failAll bool
}

func (f *fakeExtender) Extend(ctx context.Context, receipt string, seconds int32) error {
	f.calls.Add(1)
	if f.failAll {
		return errors.New("message no longer exists")
	}
	return nil
}

func TestKeeperExtendsOnInterval(t *testing.T) {
	ext := &fakeExtender{}
	k := Start(context.Background(), ext, "receipt-1", 10*time.Millisecond, time.Minute)
	defer k.Stop()

	time.Sleep(55 * time.Millisecond)

	if calls := ext.calls.Load(); calls < 3 {
		t.Fatalf("expected at least 3 extend calls in 55ms at 10ms interval, got %d", calls)
	}
	if k.LeaseLost() {
		t.Fatal("expected lease not lost")
	}
}

func TestKeeperStopsExtending(t *testing.T) {
	ext := &fakeExtender{}
	k := Start(context.Background(), ext, "receipt-1", 5*time.Millisecond, time.Minute)
	time.Sleep(20 * time.Millisecond)
	k.Stop()

	seen := ext.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if ext.calls.Load() != seen {
		t.Fatalf("expected no further extends after Stop, had %d then %d", seen, ext.calls.Load())
	}
}

func TestKeeperRecordsLeaseLost(t *testing.T) {
	ext := &fakeExtender{failAll: true}
	k := Start(context.Background(), ext, "receipt-1", 5*time.Millisecond, time.Minute)
	defer k.Stop()

	deadline := time.Now().Add(time.Second)
	for !k.LeaseLost() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !k.LeaseLost() {
		t.Fatal("expected lease lost to be recorded")
	}
}

func TestKeeperStopIsIdempotent(t *testing.T) {
	ext := &fakeExtender{}
	k := Start(context.Background(), ext, "receipt-1", time.Minute, time.Minute)
	k.Stop()
	k.Stop()
}
