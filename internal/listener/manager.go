// Package listener implements the listener fleet manager (spec §4.9): it
// creates, registers and tears down ListenerInstances, each owning a
// bound HTTP(S) endpoint, an expectation registry, TLS/mTLS state,
// basic-auth state, relay rules, and supervised tunnel subprocesses.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/certstore"
	"github.com/anandb/mockrelay/internal/dispatch"
	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/oauth2cache"
	"github.com/anandb/mockrelay/internal/strategy"
	"github.com/anandb/mockrelay/internal/tunnel"
)

const shutdownGrace = 5 * time.Second

// Manager owns every live ListenerInstance in the process. It satisfies
// config.ListenerCreator so the config loader can drive it directly.
type Manager struct {
	log        *zap.Logger
	certStore  *certstore.Store
	tunnels    *tunnel.Supervisor
	tokenCache *oauth2cache.Cache

	mu        sync.RWMutex
	listeners map[string]*Instance
	ports     map[int]string // port -> owning listenerID
}

func NewManager(log *zap.Logger, certStore *certstore.Store, tunnels *tunnel.Supervisor, tokenCache *oauth2cache.Cache) *Manager {
	return &Manager{
		log:        log,
		certStore:  certStore,
		tunnels:    tunnels,
		tokenCache: tokenCache,
		listeners:  make(map[string]*Instance),
		ports:      make(map[int]string),
	}
}

// CreateListener implements spec §4.9's createListener.
func (m *Manager) CreateListener(cfg model.ListenerConfig) error {
	m.mu.Lock()
	if _, exists := m.listeners[cfg.ListenerID]; exists {
		m.mu.Unlock()
		return apperrors.ListenerAlreadyExistsError(cfg.ListenerID)
	}
	if owner, taken := m.ports[cfg.Port]; taken {
		m.mu.Unlock()
		return apperrors.ListenerCreationError(nil, "port %d already owned by listener %q", cfg.Port, owner)
	}
	m.ports[cfg.Port] = cfg.ListenerID
	m.mu.Unlock()

	inst, err := m.build(cfg)
	if err != nil {
		m.mu.Lock()
		delete(m.ports, cfg.Port)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.listeners[cfg.ListenerID] = inst
	m.mu.Unlock()

	go m.serve(inst)
	return nil
}

func (m *Manager) build(cfg model.ListenerConfig) (*Instance, error) {
	var tlsCfg *tls.Config
	if cfg.TLS != nil {
		built, err := buildTLSConfig(cfg.ListenerID, cfg.TLS, m.certStore)
		if err != nil {
			return nil, err
		}
		tlsCfg = built
	}

	tunnels, err := m.startTunnelsSequentially(cfg)
	if err != nil {
		if cfg.TLS != nil {
			m.certStore.ReleaseListener(cfg.ListenerID)
		}
		return nil, err
	}

	registry := NewExpectationRegistry()
	strategies := strategy.SortByPriorityDescending([]strategy.Strategy{
		strategy.Static{},
		strategy.Dynamic{},
		strategy.SSE{},
	})
	isRelay := len(cfg.Relays) > 0
	if isRelay {
		strategies = strategy.SortByPriorityDescending(append(strategies, strategy.Relay{
			Rules:      cfg.Relays,
			TokenCache: m.tokenCache,
		}))
	}

	d := &dispatch.Dispatcher{
		Log:           m.log,
		BasicAuth:     cfg.BasicAuth,
		Expectations:  registry,
		Strategies:    strategies,
		GlobalHeaders: cfg.GlobalHeaders,
		IsRelay:       isRelay,
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: d,
	}
	if tlsCfg != nil {
		server.TLSConfig = tlsCfg
	}

	return &Instance{
		Config:     cfg,
		Registry:   registry,
		Dispatcher: d,
		Server:     server,
		Tunnels:    tunnels,
		CreatedAt:  time.Now(),
		serveErrCh: make(chan error, 1),
	}, nil
}

// startTunnelsSequentially runs the tunnel supervisor for each tunneled
// relay rule one at a time (never in parallel, per spec §4.9), assigning
// AssignedHostPort on success. If any tunnel fails, every tunnel already
// started for this listener is force-killed before the error returns.
func (m *Manager) startTunnelsSequentially(cfg model.ListenerConfig) (map[string]*tunnel.Handle, error) {
	handles := make(map[string]*tunnel.Handle)
	for i := range cfg.Relays {
		rule := &cfg.Relays[i]
		if !rule.HasTunnel() {
			continue
		}
		key := rule.Tunnel.Namespace + ":" + rule.Tunnel.PodPrefix
		handle, err := m.tunnels.Start(context.Background(), rule.Tunnel)
		if err != nil {
			for _, h := range handles {
				h.Stop()
			}
			return nil, err
		}
		rule.AssignedHostPort = handle.HostPort
		handles[key] = handle
	}
	return handles, nil
}

func (m *Manager) serve(inst *Instance) {
	var err error
	if inst.Server.TLSConfig != nil {
		err = inst.Server.ListenAndServeTLS("", "")
	} else {
		err = inst.Server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.log.Error("listener server stopped unexpectedly",
			zap.String("listener_id", inst.Config.ListenerID), zap.Error(err))
	}
	inst.serveErrCh <- err
}

// AppendExpectation implements config.ListenerCreator: it routes to the
// same code path the out-of-scope runtime expectation endpoint would use.
func (m *Manager) AppendExpectation(listenerID string, exp model.Expectation) error {
	m.mu.RLock()
	inst, ok := m.listeners[listenerID]
	m.mu.RUnlock()
	if !ok {
		return apperrors.ListenerNotFoundError(listenerID)
	}
	inst.Registry.Append(exp)
	return nil
}

// ReleaseListener implements spec §4.9's releaseListener: remove from the
// map, kill owned tunnels, stop the HTTP server, release TLS files.
func (m *Manager) ReleaseListener(listenerID string) error {
	m.mu.Lock()
	inst, ok := m.listeners[listenerID]
	if !ok {
		m.mu.Unlock()
		return apperrors.ListenerNotFoundError(listenerID)
	}
	delete(m.listeners, listenerID)
	delete(m.ports, inst.Config.Port)
	m.mu.Unlock()

	for _, h := range inst.Tunnels {
		h.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	shutdownErr := inst.Server.Shutdown(ctx)

	if inst.Config.TLS != nil {
		m.certStore.ReleaseListener(listenerID)
	}

	if shutdownErr != nil {
		return apperrors.ListenerCreationError(shutdownErr, "shutting down listener %q", listenerID)
	}
	return nil
}

// Shutdown releases every listener; idempotent.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.ReleaseListener(id); err != nil {
			m.log.Warn("error releasing listener during shutdown", zap.String("listener_id", id), zap.Error(err))
		}
	}
}

// Snapshots returns a read-only view of every live listener.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.listeners))
	for _, inst := range m.listeners {
		out = append(out, inst.snapshot())
	}
	return out
}
