package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]DatasetDefinition)
	registryMu sync.RWMutex
)

// Register adds a dataset definition to the registry, applying batch and
// row-cap defaults. Panics on duplicate keys or a missing upload function;
// both are wiring mistakes that should fail at startup.
func Register(def DatasetDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Key == "" {
		panic("dataset key is required")
	}
	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("dataset already registered: %s", def.Key))
	}
	if def.Upload == nil {
		panic(fmt.Sprintf("dataset %s has no upload function", def.Key))
	}
	if len(def.Columns) == 0 {
		panic(fmt.Sprintf("dataset %s has no columns", def.Key))
	}

	if def.SheetName == "" {
		def.SheetName = def.Label
	}
	if def.SheetName == "" {
		def.SheetName = def.Key
	}
	if def.MaxRows <= 0 {
		def.MaxRows = DefaultMaxRows
	}
	if def.BatchSize <= 0 {
		def.BatchSize = DefaultBatchSize
	}
	if def.BatchDelay <= 0 {
		def.BatchDelay = DefaultBatchDelay
	}
	if def.Success == nil {
		// Absent a predicate, a non-error return counts as success.
		def.Success = func(any) bool { return true }
	}

	registry[def.Key] = def
}

// Get returns a dataset definition by key.
func Get(key string) (DatasetDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered datasets, sorted by group then key.
func All() []DatasetDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasetDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names, sorted.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// DatasetCount returns the number of registered datasets.
func DatasetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered datasets. Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]DatasetDefinition)
}
