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

// LinkStatus exposes the two readiness predicates of a network stack.
type LinkStatus interface {
	IsLinkUp() bool
	ConfigV4() (NetworkLease, bool)
}

// LinkReadinessGate releases callers once the data link is up and an
// IP lease has been assigned.
type LinkReadinessGate struct {
	status   LinkStatus
	interval time.Duration
	clk      Clock
	logger   *slog.Logger
}

// NewLinkReadinessGate polls status every interval.
func NewLinkReadinessGate(status LinkStatus, interval time.Duration, clk Clock, logger *slog.Logger) *LinkReadinessGate {
	if clk == nil {
		clk = SystemClock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &LinkReadinessGate{
		status:   status,
		interval: interval,
		clk:      clk,
		logger:   logger,
	}
}

// AwaitReady blocks until the link is up and then until an IP
// configuration is present. The IP configuration is never looked at
// before link-up was observed, so a lease left over from a previous
// association is not mistaken for a fresh one. There is no timeout;
// only ctx ends the wait early.
func (g *LinkReadinessGate) AwaitReady(ctx context.Context) (NetworkLease, error) {
	for {
		g.logger.Info("waiting for link to be up")
		for !g.status.IsLinkUp() {
			if err := sleep(ctx, g.clk, g.interval); err != nil {
				return NetworkLease{}, err
			}
		}
		g.logger.Info("waiting to get IP address")
		for g.status.IsLinkUp() {
			if lease, ok := g.status.ConfigV4(); ok {
				g.logger.Info("got IP", slog.String("lease", lease.String()))
				return lease, nil
			}
			if err := sleep(ctx, g.clk, g.interval); err != nil {
				return NetworkLease{}, err
			}
		}
		// link lost before the lease arrived: start over
		g.logger.Info("link lost while waiting for IP address")
	}
}
