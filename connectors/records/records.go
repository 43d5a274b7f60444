// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package records

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the record to update does not exist.
var ErrNotFound = errors.New("record not found")

// Writer updates fields of an existing record.
type Writer interface {
	Update(ctx context.Context, entity string, id uuid.UUID, fields map[string]any) error
}

// Querier runs a store-specific query and returns the matching records as
// attribute maps.
type Querier interface {
	RetrieveMultiple(ctx context.Context, query string) ([]map[string]any, error)
}

// sortedKeys returns the field names in a stable order so generated
// statements are deterministic.
func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemoryWriter keeps records in process. Update only touches records that
// were put first, like a real store updating an existing row.
type MemoryWriter struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewMemoryWriter creates an empty in-memory record store.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{records: make(map[string]map[string]any)}
}

func memoryKey(entity string, id uuid.UUID) string {
	return entity + "/" + id.String()
}

// Put stores or replaces a record.
func (m *MemoryWriter) Put(entity string, id uuid.UUID, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := make(map[string]any, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	m.records[memoryKey(entity, id)] = rec
}

// Get returns a copy of a record.
func (m *MemoryWriter) Get(entity string, id uuid.UUID) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[memoryKey(entity, id)]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// Update sets fields on an existing record.
func (m *MemoryWriter) Update(ctx context.Context, entity string, id uuid.UUID, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[memoryKey(entity, id)]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}
