// Package coordinator implements Omega's peer registry and its three
// extra endpoints (orchestrate, delegate, network-status) on top of the
// shared worker runtime.
package coordinator

import (
	"fmt"
	"sync"

	"cloneforge/internal/worker"
)

// Registry maps a role to its base URL. Seeded from the default
// role-to-port map and overridable via RegisterClone.
type Registry struct {
	mu    sync.RWMutex
	peers map[worker.Role]string
}

// NewRegistry builds a registry pre-populated with the default role->port
// mapping, addressed on localhost, the conventional topology for a
// single-host deployment of the clone network.
func NewRegistry() *Registry {
	r := &Registry{peers: map[worker.Role]string{}}
	for _, role := range []worker.Role{worker.RoleAnalyzer, worker.RoleArchitect, worker.RoleTester, worker.RoleCommunicator} {
		r.peers[role] = fmt.Sprintf("http://localhost:%d", worker.DefaultPort(role))
	}
	return r
}

// RegisterClone overrides (or adds) the base URL for role, addressed by
// port on the conventional localhost scheme.
func (r *Registry) RegisterClone(role worker.Role, port int, specialization string) {
	r.RegisterCloneAt(role, fmt.Sprintf("http://localhost:%d", port))
}

// RegisterCloneAt overrides (or adds) the base URL for role directly,
// useful when the peer isn't addressed by the conventional localhost:port
// scheme (e.g. a test server).
func (r *Registry) RegisterCloneAt(role worker.Role, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[role] = baseURL
}

// Lookup returns the base URL for role and whether it is registered.
func (r *Registry) Lookup(role worker.Role) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.peers[role]
	return url, ok
}

// Roles returns every registered role, in no particular order.
func (r *Registry) Roles() []worker.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]worker.Role, 0, len(r.peers))
	for role := range r.peers {
		out = append(out, role)
	}
	return out
}
