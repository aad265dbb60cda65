package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	id "apihub/pkg/domain"
	"apihub/pkg/secrets"
)

// InMemory is a Connector backed by process memory, used for local runs
// and tests. Failures can be injected per environment and operation.
type InMemory struct {
	mu       sync.Mutex
	clients  map[id.EnvironmentID]map[string]map[string]struct{}
	failures map[failureKey]Kind
	calls    []Call
}

// Call records one connector invocation, in order.
type Call struct {
	Environment id.EnvironmentID
	Operation   Operation
	ClientID    string
	Scope       string
}

type failureKey struct {
	env id.EnvironmentID
	op  Operation
}

func NewInMemory() *InMemory {
	return &InMemory{
		clients:  make(map[id.EnvironmentID]map[string]map[string]struct{}),
		failures: make(map[failureKey]Kind),
	}
}

// Seed registers clientID in env with the given scopes.
func (m *InMemory) Seed(env id.EnvironmentID, clientID string, scopes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.clientLocked(env, clientID, true)
	for _, s := range scopes {
		set[s] = struct{}{}
	}
}

// Fail makes every subsequent op call in env fail with kind.
func (m *InMemory) Fail(env id.EnvironmentID, op Operation, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey{env, op}] = kind
}

// Heal removes all injected failures.
func (m *InMemory) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[failureKey]Kind)
}

// Scopes returns the granted scopes of clientID in env, sorted.
func (m *InMemory) Scopes(env id.EnvironmentID, clientID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.clientLocked(env, clientID, false))
}

// Calls returns the recorded invocations.
func (m *InMemory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *InMemory) FetchClientScopes(ctx context.Context, env id.EnvironmentID, clientID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(ctx, env, OpFetchScopes, clientID, ""); err != nil {
		return nil, err
	}
	set := m.clientLocked(env, clientID, false)
	if set == nil {
		return nil, newError(KindClientNotFound, env, OpFetchScopes, 404, nil)
	}
	return sortedKeys(set), nil
}

func (m *InMemory) AddClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(ctx, env, OpAddScope, clientID, scope); err != nil {
		return err
	}
	set := m.clientLocked(env, clientID, false)
	if set == nil {
		return newError(KindClientNotFound, env, OpAddScope, 404, nil)
	}
	set[scope] = struct{}{}
	return nil
}

func (m *InMemory) RemoveClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(ctx, env, OpRemoveScope, clientID, scope); err != nil {
		return err
	}
	set := m.clientLocked(env, clientID, false)
	if set == nil {
		return newError(KindClientNotFound, env, OpRemoveScope, 404, nil)
	}
	delete(set, scope)
	return nil
}

func (m *InMemory) CreateClient(ctx context.Context, env id.EnvironmentID, _ string) (Client, error) {
	secret, err := secrets.Generate()
	if err != nil {
		return Client{}, newError(KindCallError, env, OpCreateClient, 0, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clientID := uuid.NewString()
	if err := m.beginLocked(ctx, env, OpCreateClient, clientID, ""); err != nil {
		return Client{}, err
	}
	m.clientLocked(env, clientID, true)
	return Client{ClientID: clientID, ClientSecret: secret}, nil
}

func (m *InMemory) DeleteClient(ctx context.Context, env id.EnvironmentID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(ctx, env, OpDeleteClient, clientID, ""); err != nil {
		return err
	}
	if clients, ok := m.clients[env]; ok {
		delete(clients, clientID)
	}
	return nil
}

func (m *InMemory) beginLocked(ctx context.Context, env id.EnvironmentID, op Operation, clientID, scope string) error {
	m.calls = append(m.calls, Call{Environment: env, Operation: op, ClientID: clientID, Scope: scope})
	if err := ctx.Err(); err != nil {
		return newError(KindTimeout, env, op, 0, err)
	}
	if kind, ok := m.failures[failureKey{env, op}]; ok {
		return newError(kind, env, op, 0, nil)
	}
	return nil
}

func (m *InMemory) clientLocked(env id.EnvironmentID, clientID string, create bool) map[string]struct{} {
	clients, ok := m.clients[env]
	if !ok {
		if !create {
			return nil
		}
		clients = make(map[string]map[string]struct{})
		m.clients[env] = clients
	}
	set, ok := clients[clientID]
	if !ok && create {
		set = make(map[string]struct{})
		clients[clientID] = set
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ Connector = (*InMemory)(nil)
