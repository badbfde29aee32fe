package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// memBlobs is an in-memory blob store for service tests.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, number, docType, _ string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("%s/%s-%d", docType, number, m.seq)
	m.objects[ref] = data
	return ref, nil
}

func (m *memBlobs) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("no object %q", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Remove(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}
