package checker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alucardeht/typeline/internal/logger"
)

var (
	ErrSupervisorClosed = errors.New("supervisor is closed")
	ErrNoLiveClient     = errors.New("no live checker client")
)

var log = logger.ForComponent("checker")

// proc is the slice of Process the supervisor depends on. Tests substitute
// a fake so restart semantics can be exercised without spawning binaries.
type proc interface {
	Start(ctx context.Context, rootPath string) error
	Stop(ctx context.Context) error
	State() State
	Client() *Client
	Stats() ProcessStats
}

type SupervisorConfig struct {
	Process  ProcessConfig
	RootPath string
}

// Supervisor owns at most one live checker process at a time. Restart is
// the only recovery primitive: stop the current client, discard in-flight
// state, start a fresh one.
type Supervisor struct {
	config  SupervisorConfig
	factory func() proc

	current proc
	mu      sync.Mutex
	closed  bool
}

func NewSupervisor(config SupervisorConfig) *Supervisor {
	return &Supervisor{
		config: config,
		factory: func() proc {
			return NewProcess(config.Process)
		},
	}
}

// Start launches the checker if nothing is live yet.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSupervisorClosed
	}

	if s.current != nil && s.current.State() == StateReady {
		return nil
	}

	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	p := s.factory()
	if err := p.Start(ctx, s.config.RootPath); err != nil {
		return err
	}

	s.current = p
	return nil
}

// Restart tears down the current client and starts a new one. However many
// times it is called in sequence, exactly one live client remains; each
// call costs one stop and one start.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSupervisorClosed
	}

	if s.current != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.current.Stop(stopCtx); err != nil {
			log.Warn("stop during restart failed", "error", err)
		}
		cancel()
		s.current = nil
	}

	log.Info("restarting checker")
	return s.startLocked(ctx)
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	err := s.current.Stop(ctx)
	s.current = nil
	return err
}

func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		return current.Stop(ctx)
	}
	return nil
}

// Live reports whether exactly one ready client exists.
func (s *Supervisor) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.State() == StateReady
}

func (s *Supervisor) Client() (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.State() != StateReady {
		return nil, ErrNoLiveClient
	}

	client := s.current.Client()
	if client == nil {
		return nil, ErrNoLiveClient
	}
	return client, nil
}

// Stats snapshots the current process, live or not.
func (s *Supervisor) Stats() (ProcessStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ProcessStats{}, ErrNoLiveClient
	}
	return s.current.Stats(), nil
}

// NotifyConfigChange forwards a configuration change to the live server.
// The server answers with its own workspace/configuration request, which
// flows back through the middleware.
func (s *Supervisor) NotifyConfigChange(ctx context.Context) error {
	client, err := s.Client()
	if err != nil {
		return err
	}
	return client.DidChangeConfiguration(ctx)
}
