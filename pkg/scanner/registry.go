// Package scanner runs pluggable checks over a target directory and collects
// their findings as ScanResults.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/toyinlola/warden/pkg/interfaces"
)

// Scanner is the capability every check implements.
type Scanner interface {
	// Name returns the unique identifier for this scanner.
	Name() string

	// Scan inspects the directory tree rooted at root.
	Scan(ctx context.Context, root string) (*interfaces.ScanResult, error)
}

// Registry manages a collection of scanners and tracks which are enabled.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
	enabled  map[string]bool
}

// NewRegistry creates an empty scanner registry.
func NewRegistry() *Registry {
	return &Registry{
		scanners: make(map[string]Scanner),
		enabled:  make(map[string]bool),
	}
}

// Register adds a scanner to the registry. It is enabled by default.
// Returns an error if a scanner with the same name is already registered.
func (r *Registry) Register(s Scanner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.scanners[name]; exists {
		return fmt.Errorf("scanner: %q is already registered", name)
	}

	r.scanners[name] = s
	r.enabled[name] = true
	return nil
}

// Get returns a scanner by name. Returns nil if not found.
func (r *Registry) Get(name string) Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scanners[name]
}

// List returns the sorted names of all registered scanners.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetEnabled enables or disables a scanner by name.
// Returns an error if the scanner is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scanners[name]; !exists {
		return fmt.Errorf("scanner: %q is not registered", name)
	}
	r.enabled[name] = enabled
	return nil
}

// IsEnabled reports whether the named scanner is enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// EnabledScanners returns all enabled scanners sorted by name.
func (r *Registry) EnabledScanners() []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Scanner
	for name, s := range r.scanners {
		if r.enabled[name] {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Defaults returns one instance of every built-in scanner.
func Defaults() []Scanner {
	return []Scanner{
		NewSecretsScanner(),
		NewInjectionScanner(),
		NewMCPConfigScanner(),
		NewSupplyChainScanner(),
		NewDefensesScanner(),
	}
}
