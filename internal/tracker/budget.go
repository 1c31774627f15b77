package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultBudget approximates the browser storage quota the tracker stays under.
const DefaultBudget = 4_500_000

// ErrOverBudget is returned when a value cannot fit even after eviction.
var ErrOverBudget = errors.New("tracker: storage budget exceeded")

// BudgetStore bounds the total bytes kept in a Storage. When a write would
// exceed the budget, non-essential entries are evicted largest first, least
// recently used first among equal sizes.
type BudgetStore struct {
	backend   Storage
	budget    int
	essential map[string]bool
	now       func() time.Time

	mu         sync.Mutex
	lastAccess map[string]time.Time
}

func NewBudgetStore(backend Storage, budget int, essentialKeys ...string) *BudgetStore {
	if budget <= 0 {
		budget = DefaultBudget
	}
	essential := make(map[string]bool, len(essentialKeys))
	for _, k := range essentialKeys {
		essential[k] = true
	}
	return &BudgetStore{
		backend:    backend,
		budget:     budget,
		essential:  essential,
		now:        time.Now,
		lastAccess: map[string]time.Time{},
	}
}

func (s *BudgetStore) Get(key string) ([]byte, error) {
	v, err := s.backend.Get(key)
	if err == nil {
		s.mu.Lock()
		s.lastAccess[key] = s.now()
		s.mu.Unlock()
	}
	return v, err
}

// Set writes value, evicting other entries if needed.
func (s *BudgetStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(value) > s.budget {
		return fmt.Errorf("%w: %s needs %d bytes", ErrOverBudget, key, len(value))
	}
	sizes, err := s.backend.Sizes()
	if err != nil {
		return err
	}
	total := 0
	for k, n := range sizes {
		if k != key {
			total += n
		}
	}
	if total+len(value) > s.budget {
		for _, victim := range s.evictionOrder(sizes, key) {
			if err := s.backend.Delete(victim); err != nil {
				return err
			}
			delete(s.lastAccess, victim)
			total -= sizes[victim]
			if total+len(value) <= s.budget {
				break
			}
		}
	}
	if total+len(value) > s.budget {
		return fmt.Errorf("%w: %s needs %d bytes", ErrOverBudget, key, len(value))
	}
	if err := s.backend.Set(key, value); err != nil {
		return err
	}
	s.lastAccess[key] = s.now()
	return nil
}

func (s *BudgetStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.lastAccess, key)
	s.mu.Unlock()
	return s.backend.Delete(key)
}

func (s *BudgetStore) Sizes() (map[string]int, error) {
	return s.backend.Sizes()
}

func (s *BudgetStore) evictionOrder(sizes map[string]int, incoming string) []string {
	victims := make([]string, 0, len(sizes))
	for k := range sizes {
		if k == incoming || s.essential[k] {
			continue
		}
		victims = append(victims, k)
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if sizes[a] != sizes[b] {
			return sizes[a] > sizes[b]
		}
		ta, tb := s.lastAccess[a], s.lastAccess[b]
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a < b
	})
	return victims
}
