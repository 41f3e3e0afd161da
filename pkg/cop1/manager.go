// Package cop1 is the entry point of the library. A Manager owns links to
// spacecraft; each link carries the FOP engines of its virtual channels and,
// for simulations, FARM receivers.
package cop1

import (
	"errors"
	"fmt"
	"sync"

	"avaneesh/cop1-go/pkg/channel"
	"avaneesh/cop1-go/pkg/internal/logger"
)

var (
	ErrLinkExists   = errors.New("link already exists")
	ErrLinkNotFound = errors.New("link not found")
)

// Manager is the root object for COP-1 operations
type Manager struct {
	links  map[string]*link
	mu     sync.RWMutex
	logger logger.Logger
}

// NewManager creates a manager using the global default logger
func NewManager() *Manager {
	return NewManagerWithLogger(logger.GetDefault())
}

// NewManagerWithLogger creates a manager with a custom logger
func NewManagerWithLogger(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Manager{
		links:  make(map[string]*link),
		logger: log,
	}
}

// AddLink opens a frame channel over physical and registers it under
// config.ID
func (m *Manager) AddLink(config channel.Config, physical channel.PhysicalChannel) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[config.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrLinkExists, config.ID)
	}

	ch := channel.New(config, physical, m.logger)
	if err := ch.Open(); err != nil {
		return nil, fmt.Errorf("failed to open link: %w", err)
	}

	l := newLink(ch, m)
	m.links[config.ID] = l
	m.logger.Info("Manager: Added link %s", config.ID)
	return l, nil
}

// RemoveLink closes a link and disposes its engines
func (m *Manager) RemoveLink(id string) error {
	m.mu.Lock()
	l, exists := m.links[id]
	delete(m.links, id)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, id)
	}

	l.close()
	m.logger.Info("Manager: Removed link %s", id)
	return nil
}

// GetLink returns a link by ID
func (m *Manager) GetLink(id string) (Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, exists := m.links[id]
	if !exists {
		return nil, false
	}
	return l, true
}

// Shutdown closes every link
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*link)
	m.mu.Unlock()

	m.logger.Info("Manager: Shutting down")
	for _, l := range links {
		l.close()
	}
	m.logger.Info("Manager: Shutdown complete")
	return nil
}

// LinkCount returns the number of links
func (m *Manager) LinkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// SetLogger sets the logger used for links and engines created afterwards
func (m *Manager) SetLogger(log logger.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = log
}

func (m *Manager) log() logger.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}
