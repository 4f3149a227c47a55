// Package node runs the wake-cycle state machine: dispatch the wake cause,
// sample and evaluate, publish, persist and arm the next wake.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/button"
	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/ota"
	"github.com/sweeney/envnode/internal/platform"
	"github.com/sweeney/envnode/internal/provision"
	"github.com/sweeney/envnode/internal/services"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/store"
)

// DefaultWakeInterval is the timer wake period.
const DefaultWakeInterval = 30 * time.Second

// DefaultReleaseWait bounds how long a button wake waits for the release.
const DefaultReleaseWait = 30 * time.Second

// Sensor produces readings.
type Sensor interface {
	Acquire(ctx context.Context) (logic.SensorReading, error)
}

// ModeSource delivers classified button presses and owns the busy latch.
type ModeSource interface {
	Next(ctx context.Context) (button.Result, error)
	SetBusy(busy bool)
}

// Config configures a Controller.
type Config struct {
	DeviceID     string
	Version      ota.Version
	WakeInterval time.Duration
	Cadence      logic.Cadence
	Thresholds   logic.Thresholds

	// MaxSensorFailures restarts the node after that many consecutive failed
	// acquisitions. Zero disables the escalation.
	MaxSensorFailures int

	ReleaseWait time.Duration
	CommandWait time.Duration

	Now func() time.Time
}

// Deps are the controller's collaborators. Modes, Provisioner, Updater and
// Tracker may be nil.
type Deps struct {
	Platform    platform.Platform
	Sensor      Sensor
	Store       store.Store
	Services    *services.SystemServices
	Modes       ModeSource
	Provisioner provision.Provisioner
	Updater     ota.Updater
	Tracker     *status.Tracker
}

// Controller is the wake-cycle controller.
type Controller struct {
	cfg Config
	Deps

	failures  int
	seq       uint32
	seqLoaded bool
}

// New creates a Controller. Zero config fields take their defaults.
func New(cfg Config, deps Deps) *Controller {
	if cfg.WakeInterval <= 0 {
		cfg.WakeInterval = DefaultWakeInterval
	}
	if cfg.Cadence == (logic.Cadence{}) {
		cfg.Cadence = logic.DefaultCadence
	}
	if cfg.Thresholds == (logic.Thresholds{}) {
		cfg.Thresholds = logic.DefaultThresholds
	}
	if cfg.ReleaseWait <= 0 {
		cfg.ReleaseWait = DefaultReleaseWait
	}
	if cfg.CommandWait <= 0 {
		cfg.CommandWait = ota.CommandWait
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{cfg: cfg, Deps: deps}
}

// Run loops RunCycle and SleepUntil until ctx is done or a restart is
// requested.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := c.RunCycle(ctx); err != nil {
			if errors.Is(err, platform.ErrRestart) || ctx.Err() != nil {
				return err
			}
			log.Error().Str("component", "node").Err(err).Msg("cycle failed")
		}

		deadline := c.cfg.Now().Add(c.cfg.WakeInterval)
		if err := c.Platform.SleepUntil(ctx, deadline); err != nil {
			return err
		}
	}
}

// RunCycle executes one wake cycle. It returns an error wrapping
// platform.ErrRestart when the node must restart.
func (c *Controller) RunCycle(ctx context.Context) error {
	cause := c.Platform.LastWakeCause()

	st, err := store.LoadState(c.Store)
	if err != nil {
		log.Warn().Str("component", "node").Err(err).Msg("state unreadable, starting cold")
		st = logic.ColdState()
	}

	if cause.Kind == logic.WakeExternal {
		err := c.handleButton(ctx, cause)
		c.record(cause, logic.ActionSkip, st)
		return err
	}

	if cause.Kind == logic.WakeCold {
		st = logic.ColdState()
		cause = logic.TimerWake()
	}

	action, pending := c.sample(ctx, cause, &st)
	c.publish(ctx, pending)

	if err := store.SaveState(c.Store, st); err != nil {
		log.Error().Str("component", "node").Err(err).Msg("persist state")
	}
	c.record(c.Platform.LastWakeCause(), action, st)

	if c.cfg.MaxSensorFailures > 0 && c.failures >= c.cfg.MaxSensorFailures {
		return c.Platform.Restart(fmt.Sprintf("%d consecutive sensor failures", c.failures))
	}
	return ctx.Err()
}

// sample runs the cadence policy, acquisition and evaluation and returns the
// messages to publish.
func (c *Controller) sample(ctx context.Context, cause logic.WakeCause, st *logic.WakeCycleState) (logic.CadenceAction, []mqtt.Message) {
	action := c.cfg.Cadence.Decide(cause, st)
	logger := log.With().Str("component", "node").Str("action", action.String()).
		Uint8("cycle", st.CycleCount).Logger()

	if !action.NeedsReading() {
		logger.Debug().Msg("nothing to sample")
		return action, nil
	}

	r, err := c.Sensor.Acquire(ctx)
	if err != nil && ctx.Err() != nil {
		return action, nil
	}
	if err != nil {
		c.failures++
		logger.Warn().Err(err).Int("failures", c.failures).Msg("acquisition failed")
		r = logic.SensorReading{}
	} else {
		c.failures = 0
		logger.Debug().Float32("temperature", r.Temperature).Float32("humidity", r.Humidity).Msg("reading")
	}
	if c.Tracker != nil {
		c.Tracker.SetReading(r, c.cfg.Now(), c.failures)
	}

	var pending []mqtt.Message
	if action == logic.ActionSampleAndPublish && r.Valid {
		pending = append(pending, mqtt.Telemetry(r))
	}

	mask, changed := logic.Evaluate(r, st.LastWarningMask, c.cfg.Thresholds)
	if changed {
		logger.Info().Str("was", st.LastWarningMask.String()).Str("now", mask.String()).Msg("warning mask changed")
		pending = append(pending, mqtt.Warning(mask, r))
		st.LastWarningMask = mask
	}

	if action == logic.ActionPublishKeepAlive {
		pending = append(pending, mqtt.KeepAlive())
	}
	return action, pending
}

// publish sends each message best-effort. The network is only brought up
// when there is something to send.
func (c *Controller) publish(ctx context.Context, pending []mqtt.Message) {
	if len(pending) == 0 {
		return
	}
	tr, err := c.Services.Network(ctx)
	if err != nil {
		log.Warn().Str("component", "node").Err(err).Int("dropped", len(pending)).Msg("network unavailable")
		return
	}
	for _, m := range pending {
		c.send(tr, m)
	}
}

// send stamps and publishes one message. Failures are logged only.
func (c *Controller) send(p mqtt.Publisher, m mqtt.Message) {
	m.Seq = c.nextSeq()
	m.Timestamp = c.cfg.Now()
	if err := p.Publish(m); err != nil {
		log.Warn().Str("component", "node").Str("class", m.Class.String()).Uint32("seq", m.Seq).
			Err(err).Msg("publish failed")
		return
	}
	log.Debug().Str("component", "node").Str("class", m.Class.String()).Uint32("seq", m.Seq).Msg("published")
}

func (c *Controller) nextSeq() uint32 {
	if !c.seqLoaded {
		seq, err := store.LoadSequence(c.Store)
		if err != nil {
			log.Warn().Str("component", "node").Err(err).Msg("sequence unreadable")
		}
		c.seq = seq
		c.seqLoaded = true
	}
	c.seq++
	if err := store.SaveSequence(c.Store, c.seq); err != nil {
		log.Warn().Str("component", "node").Err(err).Msg("persist sequence")
	}
	return c.seq
}

func (c *Controller) record(cause logic.WakeCause, action logic.CadenceAction, st logic.WakeCycleState) {
	if c.Tracker == nil {
		return
	}
	c.Tracker.RecordCycle(c.cfg.Now(), cause, action, st, c.seq)
	if c.Services != nil {
		c.Tracker.SetMQTTConnected(c.Services.Connected())
	}
}
