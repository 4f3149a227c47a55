package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/envnode/internal/logic"
	"github.com/sweeney/envnode/internal/mqtt"
	"github.com/sweeney/envnode/internal/ota"
	"github.com/sweeney/envnode/internal/provision"
)

// handleButton waits for the press that caused the wake to be released and
// runs the selected mode action. Only one action runs at a time; the busy
// latch is held for its duration.
func (c *Controller) handleButton(ctx context.Context, cause logic.WakeCause) error {
	logger := log.With().Str("component", "node").Str("cause", cause.String()).Logger()
	if c.Modes == nil {
		logger.Debug().Msg("no mode source, ignoring external wake")
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, c.cfg.ReleaseWait)
	res, err := c.Modes.Next(wctx)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("no release observed")
		return nil
	}

	logger.Info().Dur("held", res.Press.Duration).Str("mode", res.Action.String()).Msg("button released")

	switch res.Action {
	case logic.ModeStartProvisioning:
		c.Modes.SetBusy(true)
		defer c.Modes.SetBusy(false)
		c.runProvisioning(ctx)
		return nil
	case logic.ModeStartFirmwareUpdate:
		c.Modes.SetBusy(true)
		defer c.Modes.SetBusy(false)
		return c.runUpdate(ctx)
	default:
		return nil
	}
}

// runProvisioning opens the provisioning window and waits for its result.
// Every outcome is recoverable.
func (c *Controller) runProvisioning(ctx context.Context) {
	if c.Provisioner == nil {
		log.Warn().Str("component", "node").Msg("provisioning not available")
		return
	}
	if _, err := c.Services.Network(ctx); err != nil {
		log.Warn().Str("component", "node").Err(err).Msg("provisioning without network")
	}

	if err := c.Provisioner.Start(ctx); err != nil {
		log.Warn().Str("component", "node").Err(err).Msg("provisioning start failed")
		return
	}
	if c.Tracker != nil {
		c.Tracker.SetProvisioning(true)
		defer c.Tracker.SetProvisioning(false)
	}

	var r provision.Result
	select {
	case r = <-c.Provisioner.Done():
	case <-ctx.Done():
		c.Provisioner.Stop()
		return
	}

	log.Info().Str("component", "node").Str("result", r.String()).Msg("provisioning finished")
	if r == provision.Success {
		// Next publish reconnects with the new credentials.
		if err := c.Services.Reset(); err != nil {
			log.Warn().Str("component", "node").Err(err).Msg("network reset")
		}
	}
}

// runUpdate announces an update check, waits for a command, validates and
// applies it. Every path ends in a restart.
func (c *Controller) runUpdate(ctx context.Context) error {
	tr, err := c.Services.Network(ctx)
	if err != nil {
		return c.Platform.Restart(fmt.Sprintf("update: network unavailable: %v", err))
	}

	// Discard commands that arrived before the check.
	for drained := false; !drained; {
		select {
		case <-tr.Commands():
		default:
			drained = true
		}
	}

	c.send(tr, mqtt.OtaStatus(ota.StatusCheck))

	wctx, cancel := context.WithTimeout(ctx, c.cfg.CommandWait)
	defer cancel()

	var payload []byte
	select {
	case payload = <-tr.Commands():
	case <-wctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.send(tr, mqtt.OtaStatus(ota.StatusTimeout))
		return c.Platform.Restart("update: no command received")
	}

	cmd, err := ota.ParseCommand(payload)
	if err == nil {
		err = cmd.Validate(c.cfg.DeviceID, c.cfg.Version)
	}
	if err != nil {
		log.Warn().Str("component", "node").Err(err).Msg("rejected update command")
		c.send(tr, mqtt.OtaStatus(ota.StatusInvalid))
		return c.Platform.Restart("update: invalid command")
	}

	if c.Updater == nil {
		c.send(tr, mqtt.OtaStatus(ota.StatusFailed))
		return c.Platform.Restart("update: no updater")
	}

	c.send(tr, mqtt.OtaStatus(ota.StatusApply))
	if err := c.Updater.Apply(ctx, cmd.URL); err != nil {
		log.Error().Str("component", "node").Err(err).Msg("update failed")
		c.send(tr, mqtt.OtaStatus(ota.StatusFailed))
		return c.Platform.Restart("update failed")
	}
	return c.Platform.Restart("updated to " + cmd.Version)
}
