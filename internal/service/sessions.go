package service

import (
	"context"
	"log"
	"sync"

	"outreachai/internal/gateway"
	"outreachai/internal/store"
)

// SessionManager hands out one lifecycle controller per signed-in user and
// tears it down on logout, so no subscription outlives its session.
type SessionManager struct {
	campaigns store.CampaignStore
	users     store.UserStore
	gateway   gateway.Gateway
	online    OnlineChecker

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewSessionManager creates a session manager over shared dependencies
func NewSessionManager(campaigns store.CampaignStore, users store.UserStore, gw gateway.Gateway, online OnlineChecker) *SessionManager {
	return &SessionManager{
		campaigns:   campaigns,
		users:       users,
		gateway:     gw,
		online:      online,
		controllers: make(map[string]*Controller),
	}
}

// GetOrStart returns the user's controller, starting one on first use.
// Controllers are started on the background context: their subscriptions
// live until logout or shutdown, not until the triggering request ends.
func (m *SessionManager) GetOrStart(session Session) (*Controller, error) {
	if session.UserID == "" {
		return nil, &ValidationError{Message: "user id is required"}
	}

	m.mu.Lock()
	if controller, ok := m.controllers[session.UserID]; ok {
		m.mu.Unlock()
		return controller, nil
	}
	m.mu.Unlock()

	controller := NewController(m.campaigns, m.users, m.gateway, m.online)
	if err := controller.Start(context.Background(), session); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have won the race; keep the first one.
	if existing, ok := m.controllers[session.UserID]; ok {
		go controller.Stop()
		return existing, nil
	}
	m.controllers[session.UserID] = controller
	return controller, nil
}

// Logout stops the user's controller, canceling all of their subscriptions
func (m *SessionManager) Logout(userID string) {
	m.mu.Lock()
	controller, ok := m.controllers[userID]
	delete(m.controllers, userID)
	m.mu.Unlock()

	if ok {
		controller.Stop()
		log.Printf("Session ended for user %s", userID)
	}
}

// StopAll ends every session, for graceful shutdown
func (m *SessionManager) StopAll() {
	m.mu.Lock()
	controllers := m.controllers
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	for _, controller := range controllers {
		controller.Stop()
	}
}
