package exchange

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrNotRegistered is returned by Container.Get for unknown names.
var ErrNotRegistered = errors.New("exchange not registered")

// Container owns a set of named exchange adapters. Names are case-insensitive.
// The container closes the adapters it holds when they are replaced,
// unregistered, or when the container itself is closed.
type Container struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

func NewContainer() *Container {
	return &Container{
		exchanges: make(map[string]Exchange),
	}
}

func containerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register stores ex under name. A different adapter already registered
// under the same name is closed and its close error returned.
func (c *Container) Register(name string, ex Exchange) error {
	if ex == nil {
		return fmt.Errorf("register %q: nil exchange", name)
	}

	c.mu.Lock()
	prev := c.exchanges[containerKey(name)]
	c.exchanges[containerKey(name)] = ex
	c.mu.Unlock()

	if prev != nil && prev != ex {
		if err := prev.Close(); err != nil {
			return fmt.Errorf("close replaced %q: %w", name, err)
		}
	}
	return nil
}

func (c *Container) Get(name string) (Exchange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ex, ok := c.exchanges[containerKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return ex, nil
}

// Names returns the registered names in sorted order.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.exchanges))
}

func (c *Container) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.exchanges[containerKey(name)]
	return ok
}

// Unregister removes and closes the adapter registered under name.
func (c *Container) Unregister(name string) error {
	c.mu.Lock()
	ex, ok := c.exchanges[containerKey(name)]
	delete(c.exchanges, containerKey(name))
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return ex.Close()
}

// Close closes every registered adapter and empties the container.
func (c *Container) Close() error {
	c.mu.Lock()
	held := c.exchanges
	c.exchanges = make(map[string]Exchange)
	c.mu.Unlock()

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(held)) {
		if err := held[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
