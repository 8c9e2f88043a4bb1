package gateway

import (
	"fmt"
	"sync"
)

// Router maps worker names to gateways.
//
// A workflow's workers typically share a backend, but the router lets a
// deployment point the planner at one provider and reviewers at others.
// A registered default serves workers without an explicit binding.
type Router struct {
	mu         sync.RWMutex
	byWorker   map[string]Gateway
	defaultGtw Gateway
}

// NewRouter creates a Router with the given default gateway. The default
// may be nil if every worker is explicitly bound.
func NewRouter(defaultGateway Gateway) *Router {
	return &Router{
		byWorker:   make(map[string]Gateway),
		defaultGtw: defaultGateway,
	}
}

// Bind routes calls for the named worker to g, replacing any previous
// binding.
func (r *Router) Bind(workerName string, g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byWorker[workerName] = g
}

// Route returns the gateway for the named worker, falling back to the
// default. Returns an error if neither exists.
func (r *Router) Route(workerName string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.byWorker[workerName]; ok {
		return g, nil
	}
	if r.defaultGtw != nil {
		return r.defaultGtw, nil
	}
	return nil, fmt.Errorf("no gateway bound for worker %q and no default configured", workerName)
}
