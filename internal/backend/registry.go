package backend

import (
	"fmt"
	"sync"
)

var (
	registry     = make(map[string]Loader)
	registryLock sync.RWMutex
)

// Register adds a loader to the registry under the adapter name. Adapters
// call this from init(); registering the same name twice overwrites.
func Register(name string, loader Loader) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[name] = loader
}

// Get returns the loader registered under name.
func Get(name string) (Loader, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	loader, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("adapter %q not found (available: %v)", name, listLocked())
	}
	return loader, nil
}

// List returns the names of all registered adapters.
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	return listLocked()
}

// Exists checks if an adapter is registered under name.
func Exists(name string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registry[name]
	return ok
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
