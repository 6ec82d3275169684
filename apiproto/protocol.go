package apiproto

import (
	"context"
	"strings"
	"sync"

	"github.com/geoknoesis/semlift-go/errors"
)

// Protocol fetches every record a config describes.
type Protocol interface {
	ID() string
	// Fetch returns the aggregated records as a JSON array tree. Cancelling
	// ctx stops paging before the next request.
	Fetch(ctx context.Context, cfg Config) (any, error)
}

// Registry maps protocol identifiers to protocols. Lookups are
// case-insensitive and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

// NewRegistry returns a registry holding the OGC API Features, WFS and
// OpenAPI protocols backed by client.
func NewRegistry(client *Client) *Registry {
	if client == nil {
		client = NewClient(0)
	}
	r := &Registry{protocols: map[string]Protocol{}}
	r.Register(&Features{Client: client})
	r.Register(&MapFeatures{Client: client})
	r.Register(&Operations{Client: client})
	return r
}

// Register adds or replaces a protocol.
func (r *Registry) Register(p Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.protocols == nil {
		r.protocols = map[string]Protocol{}
	}
	r.protocols[strings.ToLower(p.ID())] = p
}

// Lookup returns the protocol for id, accepting aliases of the built-ins.
func (r *Registry) Lookup(id string) (Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.protocols[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p, nil
	}
	if p, ok := r.protocols[CanonicalID(id)]; ok {
		return p, nil
	}
	return nil, errors.Mark(errors.Newf("Unsupported API protocol: %s", id), errors.ErrProtocol)
}

// Fetch looks up protocol and fetches cfg with it.
func (r *Registry) Fetch(ctx context.Context, protocol string, cfg Config) (any, error) {
	p, err := r.Lookup(protocol)
	if err != nil {
		return nil, err
	}
	return p.Fetch(ctx, cfg)
}

func wrongConfig(protocol string, cfg Config) error {
	return errors.Configuration("%s protocol cannot use %T config", protocol, cfg)
}
