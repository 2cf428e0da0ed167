package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	sources    = make(map[string]Source)
)

// Register adds a source engine under its name and aliases. Engine
// packages call this from init; importing the package for side effects is
// what makes an engine available. Duplicate names panic at startup.
func Register(d Source) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := d.Name()
	if _, exists := sources[name]; exists {
		panic(fmt.Sprintf("driver %q already registered", name))
	}
	sources[name] = d

	for _, alias := range d.Aliases() {
		if _, exists := sources[alias]; exists {
			panic(fmt.Sprintf("driver alias %q already registered", alias))
		}
		sources[alias] = d
	}
}

// Get resolves a name or alias, case-insensitively, to its engine.
func Get(nameOrAlias string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, exists := sources[strings.ToLower(nameOrAlias)]
	if !exists {
		return nil, fmt.Errorf("unknown source driver: %q (available: %v)", nameOrAlias, availableLocked())
	}
	return d, nil
}

// Canonicalize maps an alias to its engine's primary name, so "sqlserver"
// becomes "mssql" and "postgresql" becomes "postgres". Unknown names pass
// through unchanged.
func Canonicalize(nameOrAlias string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, exists := sources[strings.ToLower(nameOrAlias)]
	if !exists {
		return nameOrAlias
	}
	return d.Name()
}

// Available lists the primary names of every registered engine, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return availableLocked()
}

// availableLocked requires registryMu held.
func availableLocked() []string {
	seen := make(map[string]bool)
	for _, d := range sources {
		seen[d.Name()] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a name or alias resolves to an engine.
func IsRegistered(nameOrAlias string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, exists := sources[strings.ToLower(nameOrAlias)]
	return exists
}
