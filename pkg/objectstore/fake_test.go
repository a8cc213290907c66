package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// fakeSource is an in-memory SourceStore for tests.
type fakeSource struct {
	mu      sync.Mutex
	objects map[string]ObjectMeta // "bucket/key" -> meta
}

func newFakeSource() *fakeSource {
	return &fakeSource{objects: make(map[string]ObjectMeta)}
}

func (f *fakeSource) put(bucket, key string, meta ObjectMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = meta
}

func (f *fakeSource) Head(ctx context.Context, bucket, key string) (ObjectMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.objects[bucket+"/"+key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return meta, nil
}

// fakeTarget is an in-memory TargetStore for tests.
type fakeTarget struct {
	mu sync.Mutex

	objects map[string]ObjectMeta
	deleted map[string]bool

	uploads      map[string][]CompletedPart
	nextUploadID int

	failCopyPart       map[int32]bool // part number -> force failure
	failComplete       bool
	failSingleTooLarge bool
	abortedUploads     []string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		objects:      make(map[string]ObjectMeta),
		deleted:      make(map[string]bool),
		uploads:      make(map[string][]CompletedPart),
		failCopyPart: make(map[int32]bool),
	}
}

func (f *fakeTarget) Head(ctx context.Context, key string) (ObjectMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.objects[key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return meta, nil
}

func (f *fakeTarget) CopySingle(ctx context.Context, srcBucket, srcKey, dstKey string) error {
	if f.failSingleTooLarge {
		return ErrEntityTooLargeForSingleCopy
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[dstKey] = ObjectMeta{Size: 1}
	return nil
}

func (f *fakeTarget) InitiateMultipart(ctx context.Context, dstKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUploadID++
	id := fmt.Sprintf("upload-%d", f.nextUploadID)
	f.uploads[id] = nil
	return id, nil
}

func (f *fakeTarget) CopyPart(ctx context.Context, uploadID, dstKey string, partNumber int32, srcBucket, srcKey string, start, end int64) (string, error) {
	if f.failCopyPart[partNumber] {
		return "", fmt.Errorf("simulated part failure for part %d", partNumber)
	}
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeTarget) CompleteMultipart(ctx context.Context, dstKey, uploadID string, parts []CompletedPart) error {
	if f.failComplete {
		return fmt.Errorf("simulated complete failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	f.uploads[uploadID] = sorted
	delete(f.uploads, uploadID)
	f.objects[dstKey] = ObjectMeta{Size: int64(len(sorted))}
	return nil
}

func (f *fakeTarget) AbortMultipart(ctx context.Context, dstKey, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortedUploads = append(f.abortedUploads, uploadID)
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeTarget) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[key] = true
	delete(f.objects, key)
	return nil
}
