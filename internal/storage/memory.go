package storage

import (
	"context"
	"fmt"
	"medicine_importer/internal/models"
	"slices"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
	puts    int
}

func NewMemory(publicBaseURL string) *Memory {
	return &Memory{objects: make(map[string]object), baseURL: publicBaseURL}
}

func (m *Memory) Put(_ context.Context, path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = object{data: slices.Clone(data), contentType: contentType}
	m.puts++
	return nil
}

func (m *Memory) Open(_ context.Context, path string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, "", fmt.Errorf("object %s: %w", path, models.ErrNotFound)
	}
	return slices.Clone(obj.data), obj.contentType, nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *Memory) PublicURL(path string) string {
	return publicURL(m.baseURL, path)
}

// Puts counts uploads, including overwrites.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
