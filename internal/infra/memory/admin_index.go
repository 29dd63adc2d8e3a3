package memory

import (
	"context"
	"sort"
	"sync"
)

// AdminIndex keeps per-class reference sets (contestants, questions, results)
// in memory.
type AdminIndex struct {
	mu   sync.RWMutex
	refs map[string]map[string]map[string]struct{}
}

func NewAdminIndex() *AdminIndex {
	return &AdminIndex{refs: make(map[string]map[string]map[string]struct{})}
}

func (i *AdminIndex) Add(_ context.Context, className, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	kinds, ok := i.refs[className]
	if !ok {
		kinds = make(map[string]map[string]struct{})
		i.refs[className] = kinds
	}
	set, ok := kinds[kind]
	if !ok {
		set = make(map[string]struct{})
		kinds[kind] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return nil
}

// Refs returns the sorted IDs recorded for a class and kind.
func (i *AdminIndex) Refs(_ context.Context, className, kind string) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	set := i.refs[className][kind]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
