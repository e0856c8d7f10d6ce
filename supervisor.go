//----------------------------------------------------------------------
// This file is part of radiosup.
// Copyright (C) 2025-present Bernd Fix   >Y<
//
// radiosup is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// radiosup is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package radiosup

import (
	"context"
	"log/slog"
	"time"
)

// WifiSupervisor keeps the station associated with the configured
// network. It is the only writer of the connection state.
type WifiSupervisor struct {
	ctrl     WifiController
	cred     StationCredentials
	cooldown time.Duration
	clk      Clock
	logger   *slog.Logger
	state    stateCell
}

// SupervisorConfig for a new supervisor.
type SupervisorConfig struct {
	Credentials StationCredentials
	Cooldown    time.Duration
	Clock       Clock         // defaults to the system clock
	Logger      *slog.Logger  // defaults to a discarding logger
	Observer    StateObserver // optional transition hook
}

// NewWifiSupervisor creates a supervisor for the controller. The
// credentials are captured here and never change.
func NewWifiSupervisor(ctrl WifiController, cfg SupervisorConfig) *WifiSupervisor {
	w := &WifiSupervisor{
		ctrl:     ctrl,
		cred:     cfg.Credentials,
		cooldown: cfg.Cooldown,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
	}
	if w.clk == nil {
		w.clk = SystemClock{}
	}
	if w.logger == nil {
		w.logger = discardLogger()
	}
	w.state.notify = cfg.Observer
	return w
}

// State returns the current connection state.
func (w *WifiSupervisor) State() ConnectionState {
	return w.state.Load()
}

// set next state and log the transition.
func (w *WifiSupervisor) set(next ConnectionState) {
	prev := w.state.Load()
	w.state.move(next)
	w.logger.Debug("wifi state", slog.String("from", prev.String()), slog.String("to", next.String()))
}

// Run the connection loop. It returns only on a fatal error (radio
// configuration or start failed) or when ctx is done.
func (w *WifiSupervisor) Run(ctx context.Context) error {
	w.logger.Info("start connection task", slog.String("ssid", w.cred.SSID), slog.Bool("hidden", w.cred.Hidden))
	if c, ok := w.ctrl.(interface{ Capabilities() string }); ok {
		w.logger.Info("device capabilities", slog.String("caps", c.Capabilities()))
	}
	for {
		if w.State() == StateConnected {
			// wait until we're no longer connected
			if err := w.ctrl.WaitForEvent(ctx, EventStaDisconnected); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("wait for disconnect failed", slog.String("err", err.Error()))
			}
			w.set(StateIdle)
			w.logger.Info("wifi disconnected", slog.Duration("cooldown", w.cooldown))
			if err := sleep(ctx, w.clk, w.cooldown); err != nil {
				return err
			}
		}
		if err := w.attempt(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("wifi supervisor cancelled")
				return ctx.Err()
			}
			if IsFatal(err) {
				w.logger.Error("wifi supervisor stopped", slog.String("err", err.Error()))
				return err
			}
			w.logger.Info("failed to connect to wifi", slog.String("err", err.Error()), slog.Duration("cooldown", w.cooldown))
			if err := sleep(ctx, w.clk, w.cooldown); err != nil {
				return err
			}
		}
	}
}

// attempt one start/scan/connect pass from Idle.
func (w *WifiSupervisor) attempt(ctx context.Context) error {
	w.set(StateStarting)
	if started, err := w.ctrl.IsStarted(); err != nil || !started {
		if err := w.ctrl.SetConfig(w.cred); err != nil {
			return fatal("wifi configure", err)
		}
		w.logger.Info("starting wifi")
		if err := w.ctrl.Start(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fatal("wifi start", err)
		}
		w.logger.Info("wifi started")

		w.set(StateScanning)
		w.scan(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	w.set(StateConnecting)
	w.logger.Info("about to connect", slog.String("ssid", w.cred.SSID))
	if err := w.ctrl.Connect(ctx); err != nil {
		w.set(StateIdle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transient("wifi connect", err)
	}
	w.set(StateConnected)
	w.logger.Info("wifi connected", slog.String("ssid", w.cred.SSID))
	return nil
}

// scan for access points. Failures are logged only.
func (w *WifiSupervisor) scan(ctx context.Context) {
	w.logger.Info("scan")
	aps, err := w.ctrl.Scan(ctx, ScanConfig{ShowHidden: true})
	if err != nil {
		w.logger.Warn("wifi scan failed", slog.String("err", err.Error()))
		return
	}
	for _, ap := range aps {
		w.logger.Info("access point", slog.String("ap", ap.String()))
	}
	w.logger.Info("scan complete", slog.Int("found", len(aps)))
}
