package multierror

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Error collects errors keyed by the target they happened on, so that fan-out
// operations can report every failed target at once. It is safe for concurrent use.
type Error[K constraints.Ordered] struct {
	mu     sync.Mutex
	errors map[K]error
}

func New[K constraints.Ordered]() *Error[K] {
	return &Error[K]{
		errors: make(map[K]error),
	}
}

// Error lists the errors ordered by key.
func (m *Error[K]) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := maps.Keys(m.errors)
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%v: %s", k, m.errors[k]))
	}

	return strings.Join(parts, "; ")
}

// Unwrap makes errors.Is and errors.As look into every collected error.
func (m *Error[K]) Unwrap() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Values(m.errors)
}

// Is reports whether any of the collected errors matches target.
func (m *Error[K]) Is(target error) bool {
	for _, err := range m.Unwrap() {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func (m *Error[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.errors)
}

func (m *Error[K]) Add(key K, err error) {
	m.mu.Lock()
	m.errors[key] = err
	m.mu.Unlock()
}

func (m *Error[K]) Get(key K) (error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err, ok := m.errors[key]

	return err, ok
}

// Ret returns the collection as an error if it is not empty, nil otherwise.
func (m *Error[K]) Ret() error {
	if m.Len() == 0 {
		return nil
	}

	return m
}
