// Package session serializes session replacement so that at most one worker
// is ever live.
package session

import (
	"context"
	"sync"
)

// Supervisor is the process control the Manager drives.
type Supervisor interface {
	StartSession(ctx context.Context, workspaceRoot string) error
	DestroySession()
	Wait(ctx context.Context) error
}

// Manager restarts the wizard session on request.
type Manager struct {
	mu  sync.Mutex
	sup Supervisor
}

// NewManager creates a Manager over sup.
func NewManager(sup Supervisor) *Manager {
	return &Manager{sup: sup}
}

// Replace destroys the current session and starts a new one in
// workspaceRoot. Concurrent calls run one after another.
func (m *Manager) Replace(ctx context.Context, workspaceRoot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sup.DestroySession()
	return m.sup.StartSession(ctx, workspaceRoot)
}

// Destroy stops the current session, if any.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sup.DestroySession()
}

// Wait blocks until the current session's worker exits.
func (m *Manager) Wait(ctx context.Context) error {
	return m.sup.Wait(ctx)
}
