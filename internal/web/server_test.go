package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/provision"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/store"
)

type fakeSubmitter struct {
	err   error
	ssid  string
	pass  string
	calls int
}

func (f *fakeSubmitter) Submit(ssid, password string) error {
	f.calls++
	f.ssid, f.pass = ssid, password
	return f.err
}

func newTestServer(t *testing.T, sub Submitter) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		DeviceID:       "n1",
		Version:        "1.0",
		WakeIntervalMs: 30000,
		Cadence:        logic.DefaultCadence,
		Thresholds:     logic.DefaultThresholds,
		Broker:         "tcp://192.168.1.200:1883",
		HTTPAddr:       ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, sub)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetReading(logic.SensorReading{Temperature: 32, Humidity: 70, Valid: true}, time.Now(), 0)
	tr.RecordCycle(time.Now(), logic.TimerWake(), logic.ActionSampleAndPublish,
		logic.WakeCycleState{LastWarningMask: logic.WarnHighTemp}, 9)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Reading == nil || sj.Status.Reading.Temperature != 32 {
		t.Errorf("reading: %+v", sj.Status.Reading)
	}
	if sj.Status.Warnings.Flags != "HIGH_TEMP" {
		t.Errorf("flags: %s", sj.Status.Warnings.Flags)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Cycle.Sequence != 9 {
		t.Errorf("sequence: %d", sj.Status.Cycle.Sequence)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			ts, tr := newTestServer(t, nil)
			tr.SetReading(logic.SensorReading{Temperature: 24.3, Humidity: 61.5, Valid: true}, time.Now(), 0)
			tr.RecordCycle(time.Now(), logic.TimerWake(), logic.ActionSampleOnly, logic.WakeCycleState{CycleCount: 1}, 0)

			resp, body := get(t, ts.URL+path)
			if resp.StatusCode != 200 {
				t.Fatalf("status: %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type: %q", ct)
			}
			for _, want := range []string{"envnode n1", "24.3 °C", "61.5 %", "SAMPLE_ONLY", "1 / 4", "every 2 wakes"} {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
			if strings.Contains(body, `action="/provision"`) {
				t.Error("form should be hidden while provisioning is closed")
			}
		})
	}
}

func TestHTMLShowsFormWhileProvisioning(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetProvisioning(true)

	_, body := get(t, ts.URL+"/")
	if !strings.Contains(body, `action="/provision"`) {
		t.Error("expected provisioning form")
	}
	if !strings.Contains(body, "none yet") {
		t.Error("expected placeholder before first reading")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, _ := get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestProvisionEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"accepted", nil, http.StatusOK},
		{"window closed", provision.ErrNotOpen, http.StatusConflict},
		{"invalid", provision.ErrInvalidCredentials, http.StatusBadRequest},
		{"store failure", errors.New("flash full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tt.err}
			ts, _ := newTestServer(t, sub)

			resp, err := http.PostForm(ts.URL+"/provision", url.Values{"ssid": {"greenhouse"}, "password": {"s3cretpass"}})
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if sub.ssid != "greenhouse" || sub.pass != "s3cretpass" {
				t.Errorf("submitted %q/%q", sub.ssid, sub.pass)
			}
		})
	}
}

func TestProvisionRequiresPost(t *testing.T) {
	sub := &fakeSubmitter{}
	ts, _ := newTestServer(t, sub)

	resp, _ := get(t, ts.URL+"/provision")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if sub.calls != 0 {
		t.Error("GET should not submit")
	}
}

func TestProvisionWithoutSubmitter(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.PostForm(ts.URL+"/provision", url.Values{"ssid": {"x"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status: got %d, want 409", resp.StatusCode)
	}
}

func TestProvisionThroughWindow(t *testing.T) {
	s := store.NewMemory()
	w := provision.NewWindow(s, time.Minute)
	ts, _ := newTestServer(t, w)

	post := func() int {
		resp, err := http.PostForm(ts.URL+"/provision", url.Values{"ssid": {"greenhouse"}, "password": {""}})
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(); code != http.StatusConflict {
		t.Errorf("before window: got %d, want 409", code)
	}

	w.Start(context.Background())
	if code := post(); code != http.StatusOK {
		t.Errorf("open window: got %d, want 200", code)
	}
	if r := <-w.Done(); r != provision.Success {
		t.Errorf("result: %s", r)
	}
	if c, ok, _ := store.LoadCredentials(s); !ok || c.SSID != "greenhouse" {
		t.Errorf("stored: %+v ok=%v", c, ok)
	}
}
