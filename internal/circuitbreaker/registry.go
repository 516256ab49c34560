package circuitbreaker

import (
	"errors"

	"github.com/vyrodovalexey/loangw/internal/config"
)

// ErrUnknownService is returned for a service without a breaker.
var ErrUnknownService = errors.New("service not found")

// ServiceStatus is the status of one named breaker.
type ServiceStatus struct {
	Service string
	Status
}

// Registry holds exactly one breaker per configured service. The set of
// breakers is fixed at construction.
type Registry struct {
	order    []string
	breakers map[string]*Breaker
}

// NewRegistry creates a breaker for every descriptor. opts apply to each
// breaker.
func NewRegistry(services []config.ServiceDescriptor, opts ...Option) *Registry {
	r := &Registry{
		order:    make([]string, 0, len(services)),
		breakers: make(map[string]*Breaker, len(services)),
	}

	for _, svc := range services {
		if _, exists := r.breakers[svc.Name]; exists {
			continue
		}
		r.order = append(r.order, svc.Name)
		r.breakers[svc.Name] = New(svc.Name, svc.Breaker, opts...)
	}

	return r
}

// Get returns the breaker for service.
func (r *Registry) Get(service string) (*Breaker, error) {
	b, ok := r.breakers[service]
	if !ok {
		return nil, ErrUnknownService
	}
	return b, nil
}

// Reset resets the breaker for service.
func (r *Registry) Reset(service string) error {
	b, err := r.Get(service)
	if err != nil {
		return err
	}
	b.Reset()
	return nil
}

// Names returns the service names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot returns every breaker's status in configuration order.
func (r *Registry) Snapshot() []ServiceStatus {
	out := make([]ServiceStatus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, ServiceStatus{Service: name, Status: r.breakers[name].Snapshot()})
	}
	return out
}
