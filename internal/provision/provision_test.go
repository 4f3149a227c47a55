package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/store"
)

var _ Provisioner = (*Window)(nil)

func wait(t *testing.T, w *Window) Result {
	t.Helper()
	select {
	case r := <-w.Done():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("window did not close")
		return 0
	}
}

func TestSubmitSavesCredentials(t *testing.T) {
	s := store.NewMemory()
	w := NewWindow(s, time.Minute)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.IsOpen() {
		t.Fatal("window should be open")
	}

	if err := w.Submit("greenhouse", "s3cretpass"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r := wait(t, w); r != Success {
		t.Errorf("got %s, want SUCCESS", r)
	}
	if w.IsOpen() {
		t.Error("window should be closed")
	}

	c, ok, err := store.LoadCredentials(s)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if c.SSID != "greenhouse" || c.Password != "s3cretpass" {
		t.Errorf("stored %+v", c)
	}
}

func TestWindowTimesOut(t *testing.T) {
	w := NewWindow(store.NewMemory(), 20*time.Millisecond)
	w.Start(context.Background())

	if r := wait(t, w); r != Timeout {
		t.Errorf("got %s, want TIMEOUT", r)
	}
	if err := w.Submit("late", ""); !errors.Is(err, ErrNotOpen) {
		t.Errorf("submit after timeout: got %v", err)
	}
}

func TestWindowCancelledIsFailure(t *testing.T) {
	w := NewWindow(store.NewMemory(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	if r := wait(t, w); r != Failure {
		t.Errorf("got %s, want FAILURE", r)
	}
}

func TestStop(t *testing.T) {
	w := NewWindow(store.NewMemory(), time.Minute)
	w.Start(context.Background())
	w.Stop()

	if r := wait(t, w); r != Failure {
		t.Errorf("got %s, want FAILURE", r)
	}
	// Stopping a closed window is a no-op.
	w.Stop()
	select {
	case r := <-w.Done():
		t.Errorf("unexpected second result %s", r)
	default:
	}
}

func TestStartTwice(t *testing.T) {
	w := NewWindow(store.NewMemory(), time.Minute)
	w.Start(context.Background())
	defer w.Stop()
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("got %v, want ErrAlreadyOpen", err)
	}
}

func TestSubmitStoreFailure(t *testing.T) {
	s := store.NewMemory()
	s.PutError = errors.New("flash full")
	w := NewWindow(s, time.Minute)
	w.Start(context.Background())

	if err := w.Submit("greenhouse", ""); err == nil {
		t.Fatal("expected error")
	}
	if r := wait(t, w); r != Failure {
		t.Errorf("got %s, want FAILURE", r)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		wantErr  bool
	}{
		{"open network", "cafe", "", false},
		{"wpa", "home", "longenough", false},
		{"empty ssid", "", "longenough", true},
		{"long ssid", strings.Repeat("x", 33), "", true},
		{"short password", "home", "short", true},
		{"long password", "home", strings.Repeat("p", 64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(store.NewMemory(), time.Minute)
			w.Start(context.Background())
			defer w.Stop()

			err := w.Submit(tt.ssid, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("got %v, want ErrInvalidCredentials", err)
				}
				if !w.IsOpen() {
					t.Error("invalid input should leave the window open")
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWindowReusable(t *testing.T) {
	w := NewWindow(store.NewMemory(), time.Minute)
	w.Start(context.Background())
	w.Stop()
	wait(t, w)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	w.Submit("again", "")
	if r := wait(t, w); r != Success {
		t.Errorf("got %s", r)
	}
}
