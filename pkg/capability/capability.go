package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Capability is a named callable a stage may invoke while it is being completed.
type Capability interface {
	// Name returns the identifier stages use to request the capability.
	Name() string

	// Description is shown to the model when the capability is offered.
	Description() string

	// Invoke runs the capability against a single free-text argument.
	Invoke(ctx context.Context, argument string) (any, error)
}

// ErrUnknownCapability is returned when a name has no registered capability.
var ErrUnknownCapability = errors.New("unknown capability")

// ErrRegistryFrozen is returned when registering after Freeze.
var ErrRegistryFrozen = errors.New("capability registry is frozen")

// CapabilityError reports a failure of a registered capability.
type CapabilityError struct {
	Name string
	Err  error
}

func (e *CapabilityError) Error() string {
	if e == nil {
		return "capability error"
	}
	if e.Err == nil {
		return fmt.Sprintf("capability %s failed", e.Name)
	}
	return fmt.Sprintf("capability %s: %v", e.Name, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Registry maps capability names to implementations.
// It is built at startup, frozen, and then shared read-only across runs.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	frozen       bool
}

// NewRegistry creates a registry holding the given capabilities.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{capabilities: make(map[string]Capability)}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a capability. Names must be unique.
func (r *Registry) Register(c Capability) error {
	if c == nil {
		return fmt.Errorf("capability is nil")
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("capability name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, ok := r.capabilities[name]; ok {
		return fmt.Errorf("duplicate capability: %s", name)
	}
	r.capabilities[name] = c
	return nil
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke calls the named capability. Failures are reported as *CapabilityError.
func (r *Registry) Invoke(ctx context.Context, name, argument string) (any, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, &CapabilityError{Name: name, Err: ErrUnknownCapability}
	}

	value, err := c.Invoke(ctx, argument)
	if err != nil {
		var capErr *CapabilityError
		if errors.As(err, &capErr) {
			return nil, err
		}
		return nil, &CapabilityError{Name: name, Err: err}
	}
	return value, nil
}
