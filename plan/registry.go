package plan

import (
	"context"
	"sync"

	"github.com/geoknoesis/semlift-go/errors"
)

// LocalProvider is the provider id of plans registered directly on a
// Registry.
const LocalProvider = "local"

// Resolver finds a plan by provider and identifier.
type Resolver interface {
	Resolve(ctx context.Context, provider, id string) (*Plan, error)
}

// Provider serves the plans of one source, such as a building block
// register.
type Provider interface {
	ID() string
	Resolve(ctx context.Context, id string) (*Plan, error)
}

// UnknownProviderError returns the error a Resolver reports for a provider it
// does not serve.
func UnknownProviderError(provider string) error {
	return errors.Mark(errors.Newf("Unknown plan provider: %s", provider), errors.ErrUnknownProvider)
}

// UnknownIdentifierError returns the error a Provider reports for an id it
// does not know.
func UnknownIdentifierError(provider, id string) error {
	return errors.Mark(errors.Newf("Unknown plan id: %s (provider %s)", id, provider), errors.ErrUnknownIdentifier)
}

// Registry resolves plans from registered providers and from plans
// registered under the "local" provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	plans     map[string]*Plan
}

// NewRegistry returns a registry serving providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}, plans: map[string]*Plan{}}
	for _, p := range providers {
		r.RegisterProvider(p)
	}
	return r
}

// RegisterProvider adds or replaces a provider.
func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// RegisterPlan stores p under id for the "local" provider.
func (r *Registry) RegisterPlan(id string, p *Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[id] = p
}

// Plan returns the local plan registered under id.
func (r *Registry) Plan(id string) (*Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, UnknownIdentifierError(LocalProvider, id)
	}
	return p, nil
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, provider, id string) (*Plan, error) {
	if provider == LocalProvider {
		return r.Plan(id)
	}
	r.mu.RLock()
	p, ok := r.providers[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, UnknownProviderError(provider)
	}
	return p.Resolve(ctx, id)
}

// Composite tries each resolver in order. It moves to the next resolver only
// when one reports an unknown provider or identifier; any other failure is
// returned as is.
type Composite []Resolver

// Resolve implements Resolver.
func (c Composite) Resolve(ctx context.Context, provider, id string) (*Plan, error) {
	var last error
	for _, r := range c {
		p, err := r.Resolve(ctx, provider, id)
		if err == nil {
			return p, nil
		}
		if !errors.IsAny(err, errors.ErrUnknownProvider, errors.ErrUnknownIdentifier) {
			return nil, err
		}
		last = err
	}
	if last == nil {
		last = UnknownProviderError(provider)
	}
	return nil, last
}
