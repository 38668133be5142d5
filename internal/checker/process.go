package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrMaxRestarts       = errors.New("max restart attempts exceeded")
	ErrProcessNotRunning = errors.New("process not running")
)

type ProcessConfig struct {
	// Command is the resolved checker binary path.
	Command string
	// Args precede the lsp subcommand, e.g. configured global flags.
	Args []string

	InitTimeout    time.Duration
	RequestTimeout time.Duration
	MaxRestarts    int

	Client ClientConfig
}

func DefaultProcessConfig(command string) ProcessConfig {
	return ProcessConfig{
		Command:        command,
		InitTimeout:    30 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxRestarts:    3,
		Client:         DefaultClientConfig(),
	}
}

// Process owns one checker subprocess and the LSP client speaking to it
// over stdio.
type Process struct {
	config  ProcessConfig
	circuit *CircuitBreaker

	cmd    *exec.Cmd
	client *Client

	state        atomic.Value
	restartCount int
	startedAt    time.Time
	lastError    error

	mu       sync.RWMutex
	stopOnce sync.Once
}

func NewProcess(config ProcessConfig) *Process {
	p := &Process{
		config:  config,
		circuit: NewCircuitBreaker(DefaultCircuitConfig()),
	}
	p.state.Store(StateStopped)
	return p
}

func (p *Process) Start(ctx context.Context, rootPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentState := p.getState()
	if currentState == StateReady || currentState == StateStarting || currentState == StateInitializing {
		return nil
	}

	if p.restartCount >= p.config.MaxRestarts {
		return ErrMaxRestarts
	}

	if !p.circuit.Allow() {
		return fmt.Errorf("circuit breaker open for %s", p.config.Command)
	}

	p.state.Store(StateStarting)
	p.stopOnce = sync.Once{}

	args := append(append([]string{}, p.config.Args...), "lsp")
	p.cmd = exec.CommandContext(ctx, p.config.Command, args...)
	p.cmd.Dir = rootPath
	p.cmd.Env = os.Environ()
	p.cmd.Stderr = os.Stderr

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		p.state.Store(StateError)
		p.lastError = err
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		p.state.Store(StateError)
		p.lastError = err
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		p.state.Store(StateError)
		p.lastError = err
		p.circuit.RecordFailure()
		return fmt.Errorf("failed to start %s: %w", p.config.Command, err)
	}

	p.startedAt = time.Now()

	clientConfig := p.config.Client
	if clientConfig.InitTimeout == 0 {
		clientConfig.InitTimeout = p.config.InitTimeout
	}
	if clientConfig.RequestTimeout == 0 {
		clientConfig.RequestTimeout = p.config.RequestTimeout
	}

	client, err := NewClient(ctx, stdin, stdout, clientConfig)
	if err != nil {
		p.killProcess()
		p.state.Store(StateError)
		p.lastError = err
		p.circuit.RecordFailure()
		return fmt.Errorf("failed to create checker client: %w", err)
	}

	p.client = client

	if err := p.client.Initialize(ctx, FileURI(rootPath)); err != nil {
		p.killProcess()
		p.state.Store(StateError)
		p.lastError = err
		p.circuit.RecordFailure()
		p.restartCount++
		return fmt.Errorf("failed to initialize checker: %w", err)
	}

	p.state.Store(StateReady)
	p.circuit.RecordSuccess()
	return nil
}

func (p *Process) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.getState() == StateStopped {
			return
		}

		if p.client != nil && p.client.IsReady() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if shutdownErr := p.client.Shutdown(shutdownCtx); shutdownErr != nil {
				err = shutdownErr
			}
			cancel()
			p.client.Close()
		}

		if p.cmd != nil && p.cmd.Process != nil {
			if sigErr := p.cmd.Process.Signal(os.Interrupt); sigErr != nil {
				err = sigErr
			}

			done := make(chan error, 1)
			go func() {
				done <- p.cmd.Wait()
			}()

			select {
			case <-done:
			case <-time.After(3 * time.Second):
				p.cmd.Process.Kill()
				<-done
			}
		}

		p.state.Store(StateStopped)
		p.client = nil
		p.cmd = nil
	})
	return err
}

func (p *Process) killProcess() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	if p.client != nil {
		p.client.Close()
	}
	p.cmd = nil
	p.client = nil
}

func (p *Process) Client() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

func (p *Process) State() State {
	return p.getState()
}

func (p *Process) getState() State {
	return p.state.Load().(State)
}

func (p *Process) Stats() ProcessStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := ProcessStats{
		Command: p.config.Command,
		State:   p.getState(),
		Circuit: p.circuit.State(),
	}

	if p.client != nil {
		clientStats := p.client.Stats()
		stats.RequestCount = clientStats.RequestCount
		stats.ErrorCount = clientStats.ErrorCount
		stats.LastRequest = clientStats.LastRequest
	}

	if !p.startedAt.IsZero() {
		stats.StartedAt = p.startedAt
		if p.getState() == StateReady {
			stats.Uptime = time.Since(p.startedAt)
		}
	}

	if p.lastError != nil {
		stats.LastErrorMsg = p.lastError.Error()
	}

	return stats
}
