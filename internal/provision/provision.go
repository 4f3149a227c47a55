// Package provision runs the bounded window in which the node accepts new
// network credentials.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/store"
)

// DefaultTimeout bounds a provisioning window.
const DefaultTimeout = 60 * time.Second

// Result is how a provisioning window ended.
type Result int

const (
	Success Result = iota
	Failure
	Timeout
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotOpen            = errors.New("provisioning window not open")
	ErrAlreadyOpen        = errors.New("provisioning window already open")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Provisioner is the provisioning collaborator.
type Provisioner interface {
	Start(ctx context.Context) error
	Stop() error
	// Done delivers exactly one Result per started window.
	Done() <-chan Result
}

// Window accepts credentials through Submit while open and persists them.
type Window struct {
	store   store.Store
	timeout time.Duration

	mu     sync.Mutex
	open   bool
	done   chan Result
	cancel context.CancelFunc
}

// NewWindow creates a Window saving credentials to s.
func NewWindow(s store.Store, timeout time.Duration) *Window {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Window{store: s, timeout: timeout, done: make(chan Result, 1)}
}

// Start opens the window. It closes with Timeout after the configured
// duration, or Failure if ctx is cancelled first.
func (w *Window) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open {
		return ErrAlreadyOpen
	}

	wctx, cancel := context.WithTimeout(ctx, w.timeout)
	done := make(chan Result, 1)
	w.open = true
	w.done = done
	w.cancel = cancel

	log.Info().Str("component", "provision").Dur("timeout", w.timeout).Msg("window open")

	go func() {
		<-wctx.Done()
		r := Failure
		if errors.Is(wctx.Err(), context.DeadlineExceeded) {
			r = Timeout
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.done == done {
			w.finishLocked(r)
		}
	}()
	return nil
}

func (w *Window) finishLocked(r Result) {
	if !w.open {
		return
	}
	w.open = false
	w.cancel()
	w.done <- r
	log.Info().Str("component", "provision").Str("result", r.String()).Msg("window closed")
}

// Stop closes an open window with Failure.
func (w *Window) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finishLocked(Failure)
	return nil
}

// Done implements Provisioner.
func (w *Window) Done() <-chan Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// IsOpen reports whether credentials are currently accepted.
func (w *Window) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Submit validates and stores credentials, closing the window with Success.
// A store failure closes it with Failure.
func (w *Window) Submit(ssid, password string) error {
	if err := validate(ssid, password); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrNotOpen
	}

	if err := store.SaveCredentials(w.store, store.Credentials{SSID: ssid, Password: password}); err != nil {
		w.finishLocked(Failure)
		return fmt.Errorf("save credentials: %w", err)
	}
	w.finishLocked(Success)
	return nil
}

// validate applies WPA2 limits: SSID 1-32 bytes, passphrase empty (open
// network) or 8-63 bytes.
func validate(ssid, password string) error {
	if len(ssid) == 0 || len(ssid) > 32 {
		return fmt.Errorf("%w: ssid must be 1-32 bytes", ErrInvalidCredentials)
	}
	if n := len(password); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("%w: password must be 8-63 bytes", ErrInvalidCredentials)
	}
	return nil
}
