package checker

import (
	"sync"
	"time"
)

// A crashing checker binary must not be relaunched in a tight loop. The
// breaker opens after repeated start failures and lets a single probe
// through once the open timeout has passed.

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

type CircuitConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxCalls int
}

func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

type CircuitBreaker struct {
	config        CircuitConfig
	state         CircuitState
	failures      int
	successes     int
	lastFailure   time.Time
	halfOpenCalls int
	mu            sync.RWMutex
}

func NewCircuitBreaker(config CircuitConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
	}
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.config.OpenTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCalls = 0
			cb.successes = 0
			log.Debug("circuit half-open, allowing a checker relaunch attempt")
			return cb.allowHalfOpen()
		}
		return false

	case CircuitHalfOpen:
		return cb.allowHalfOpen()
	}

	return false
}

func (cb *CircuitBreaker) allowHalfOpen() bool {
	if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
		cb.halfOpenCalls++
		return true
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.successes++
		cb.halfOpenCalls--
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
			log.Info("circuit closed, checker stable again")
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = CircuitOpen
			log.Warn("circuit open, suspending checker relaunches",
				"failures", cb.failures, "retry_after", cb.config.OpenTimeout)
		}

	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.halfOpenCalls = 0
		cb.successes = 0
		log.Warn("checker relaunch attempt failed, circuit open again")
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCalls = 0
}
