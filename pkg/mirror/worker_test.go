package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinZhao/s3sync/pkg/queue"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []queue.Message
	acked    []string
	extended atomic.Int32
	receives atomic.Int32
}

func (f *fakeQueue) Receive(ctx context.Context, waitSeconds, maxMessages int32) ([]queue.Message, error) {
	f.receives.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil, nil
	}
	n := int(maxMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	batch := f.messages[:n]
	f.messages = f.messages[n:]
	return batch, nil
}

func (f *fakeQueue) Ack(ctx context.Context, receipt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, receipt)
	return nil
}

func (f *fakeQueue) Extend(ctx context.Context, receipt string, seconds int32) error {
	f.extended.Add(1)
	return nil
}

func (f *fakeQueue) Depth(ctx context.Context) (queue.Depth, error) { return queue.Depth{}, nil }

type fakeCopier struct {
	mu     sync.Mutex
	copied []string
	fail   map[string]bool
}

func (f *fakeCopier) Copy(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[key] {
		return NewError(ErrCopyFailed, key, errors.New("simulated"))
	}
	f.copied = append(f.copied, key)
	return nil
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeDeleter) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func createEventBody(eventName, bucket, key string) string {
	return fmt.Sprintf(`{"Records":[{"eventName":%q,"s3":{"bucket":{"name":%q},"object":{"key":%q,"size":10}}}]}`, eventName, bucket, key)
}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ID:                   "w-1",
		SourceBucket:         "SRC",
		WaitTime:             time.Millisecond,
		EmptyPollsBeforeExit: 2,
		ExtendInterval:       time.Hour,
		VisibilityTimeout:    time.Hour,
		DrainDeadline:        time.Second,
	}
}

// S1: one CREATE message acks and copies, no multipart.
func TestWorkerProcessesCreateAndAcks(t *testing.T) {
	q := &fakeQueue{messages: []queue.Message{
		{Body: createEventBody("ObjectCreated:Put", "SRC", "a/b.txt"), Receipt: "r1", MessageID: "m1", Attempts: 1},
	}}
	copier := &fakeCopier{fail: map[string]bool{}}
	deleter := &fakeDeleter{}

	w := NewWorker(q, copier, deleter, nil, testWorkerConfig())
	code := w.Run(context.Background())

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if len(copier.copied) != 1 || copier.copied[0] != "a/b.txt" {
		t.Fatalf("expected a/b.txt copied, got %v", copier.copied)
	}
	if len(q.acked) != 1 || q.acked[0] != "r1" {
		t.Fatalf("expected message acked, got %v", q.acked)
	}
}

// S4: delete event deletes and acks even though delete is idempotent.
func TestWorkerProcessesDeleteAndAcks(t *testing.T) {
	q := &fakeQueue{messages: []queue.Message{
		{Body: createEventBody("ObjectRemoved:Delete", "SRC", "x"), Receipt: "r1", MessageID: "m1", Attempts: 1},
	}}
	copier := &fakeCopier{fail: map[string]bool{}}
	deleter := &fakeDeleter{}

	w := NewWorker(q, copier, deleter, nil, testWorkerConfig())
	w.Run(context.Background())

	if len(deleter.deleted) != 1 || deleter.deleted[0] != "x" {
		t.Fatalf("expected x deleted exactly once, got %v", deleter.deleted)
	}
	if len(q.acked) != 1 {
		t.Fatalf("expected message acked, got %v", q.acked)
	}
}

func TestWorkerDoesNotAckOnCopyFailure(t *testing.T) {
	q := &fakeQueue{messages: []queue.Message{
		{Body: createEventBody("ObjectCreated:Put", "SRC", "bad.txt"), Receipt: "r1", MessageID: "m1", Attempts: 1},
	}}
	copier := &fakeCopier{fail: map[string]bool{"bad.txt": true}}
	deleter := &fakeDeleter{}

	w := NewWorker(q, copier, deleter, nil, testWorkerConfig())
	w.Run(context.Background())

	if len(q.acked) != 0 {
		t.Fatalf("expected no ack on failure, got %v", q.acked)
	}
}

func TestWorkerExitsAfterEmptyPolls(t *testing.T) {
	q := &fakeQueue{}
	copier := &fakeCopier{fail: map[string]bool{}}
	deleter := &fakeDeleter{}

	cfg := testWorkerConfig()
	cfg.EmptyPollsBeforeExit = 3
	w := NewWorker(q, copier, deleter, nil, cfg)

	code := w.Run(context.Background())
	if code != 0 {
		t.Fatalf("expected clean exit, got code %d", code)
	}
	if q.receives.Load() < int32(cfg.EmptyPollsBeforeExit) {
		t.Fatalf("expected at least %d receive calls before idle exit, got %d", cfg.EmptyPollsBeforeExit, q.receives.Load())
	}
}

func TestWorkerDrainsOnContextCancellation(t *testing.T) {
	q := &fakeQueue{}
	copier := &fakeCopier{fail: map[string]bool{}}
	deleter := &fakeDeleter{}

	cfg := testWorkerConfig()
	cfg.EmptyPollsBeforeExit = 1000 // would never idle-exit on its own
	w := NewWorker(q, copier, deleter, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan int, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected clean drain exit code 0, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not exit promptly on canceled context")
	}
}

func TestWorkerSkipsIrrelevantEventNamesAsNoOpAck(t *testing.T) {
	q := &fakeQueue{messages: []queue.Message{
		{Body: createEventBody("ObjectRestore:Completed", "SRC", "x"), Receipt: "r1", MessageID: "m1", Attempts: 1},
	}}
	copier := &fakeCopier{fail: map[string]bool{}}
	deleter := &fakeDeleter{}

	w := NewWorker(q, copier, deleter, nil, testWorkerConfig())
	w.Run(context.Background())

	if len(copier.copied) != 0 || len(deleter.deleted) != 0 {
		t.Fatal("expected no copy/delete for irrelevant event")
	}
	if len(q.acked) != 1 {
		t.Fatalf("expected no-op ack for message with no relevant records, got %v", q.acked)
	}
}
