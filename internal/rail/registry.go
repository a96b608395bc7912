package rail

import (
	"fmt"

	"payconfirm/internal/domain"
)

// Registry resolves a rail kind to its adapter.
type Registry struct {
	adapters map[domain.RailKind]Adapter
}

// NewRegistry creates a registry. A later adapter for the same kind replaces
// an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.RailKind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// Adapter returns the adapter for kind.
func (r *Registry) Adapter(kind domain.RailKind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRail, kind)
	}
	return a, nil
}

// Webhook returns the webhook adapter for kind.
func (r *Registry) Webhook(kind domain.RailKind) (WebhookAdapter, error) {
	a, err := r.Adapter(kind)
	if err != nil {
		return nil, err
	}
	wa, ok := a.(WebhookAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWebhookUnsupported, kind)
	}
	return wa, nil
}
