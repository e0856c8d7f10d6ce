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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

const cooldown = 5000 * time.Millisecond

// runSupervisor starts a supervisor on a simulated radio. The returned
// stop function cancels it and returns the error of Run.
func runSupervisor(c *qt.C, sim *SimRadio, clk Clock, rec *transitions) (*WifiSupervisor, func() error) {
	var obs StateObserver
	if rec != nil {
		obs = rec.observe
	}
	ctrl, _ := sim.Wifi()
	sup := NewWifiSupervisor(ctrl, SupervisorConfig{
		Credentials: NewStationCredentials("home", "secret", "false"),
		Cooldown:    cooldown,
		Clock:       clk,
		Observer:    obs,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			c.Fatal("supervisor did not stop")
			return nil
		}
	}
	return sup, stop
}

func TestSupervisorFirstConnect(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{AccessPoints: testAccessPoints}, clk)
	var rec transitions
	sup, stop := runSupervisor(c, sim, clk, &rec)

	waitFor(t, "connected", func() bool { return sup.State() == StateConnected })
	c.Assert(stop(), qt.ErrorIs, context.Canceled)

	c.Assert(rec.get(), qt.DeepEquals, [][2]ConnectionState{
		{StateIdle, StateStarting},
		{StateStarting, StateScanning},
		{StateScanning, StateConnecting},
		{StateConnecting, StateConnected},
	})
	var ops []string
	for _, call := range sim.Calls() {
		ops = append(ops, call.Op)
	}
	c.Assert(ops, qt.DeepEquals, []string{"config", "start", "scan", "connect"})
	cred, ok := sim.Credentials()
	c.Assert(ok, qt.IsTrue)
	c.Assert(cred, qt.Equals, StationCredentials{SSID: "home", Passphrase: "secret"})
}

func TestSupervisorRetriesFailedConnect(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{AccessPoints: testAccessPoints, ConnectFailures: 2}, clk)
	var rec transitions
	sup, stop := runSupervisor(c, sim, clk, &rec)

	waitFor(t, "connected", func() bool { return sup.State() == StateConnected })
	c.Assert(stop(), qt.ErrorIs, context.Canceled)

	connects := callsOf(sim, "connect")
	c.Assert(connects, qt.HasLen, 3)
	for i := 1; i < len(connects); i++ {
		c.Assert(connects[i].At.Sub(connects[i-1].At) >= cooldown, qt.IsTrue,
			qt.Commentf("attempt %d after %s", i+1, connects[i].At.Sub(connects[i-1].At)))
	}
	// the radio stays started: no second start, no second scan
	c.Assert(callsOf(sim, "start"), qt.HasLen, 1)
	c.Assert(callsOf(sim, "scan"), qt.HasLen, 1)
	c.Assert(rec.get(), qt.DeepEquals, [][2]ConnectionState{
		{StateIdle, StateStarting},
		{StateStarting, StateScanning},
		{StateScanning, StateConnecting},
		{StateConnecting, StateIdle},
		{StateIdle, StateStarting},
		{StateStarting, StateConnecting},
		{StateConnecting, StateIdle},
		{StateIdle, StateStarting},
		{StateStarting, StateConnecting},
		{StateConnecting, StateConnected},
	})
}

func TestSupervisorReconnectsAfterDisconnect(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{AccessPoints: testAccessPoints}, clk)
	var rec transitions
	sup, stop := runSupervisor(c, sim, clk, &rec)

	waitFor(t, "connected", func() bool { return sup.State() == StateConnected })
	lost := clk.Now()
	sim.Disconnect()
	waitFor(t, "second connect", func() bool {
		return len(callsOf(sim, "connect")) == 2 && sup.State() == StateConnected
	})
	c.Assert(stop(), qt.ErrorIs, context.Canceled)

	starts := callsOf(sim, "start")
	c.Assert(starts, qt.HasLen, 2)
	c.Assert(starts[1].At.Sub(lost) >= cooldown, qt.IsTrue)
	c.Assert(callsOf(sim, "connect")[1].At.Sub(lost) >= cooldown, qt.IsTrue)
	c.Assert(callsOf(sim, "scan"), qt.HasLen, 2)

	edges := rec.get()
	c.Assert(edges[4], qt.Equals, [2]ConnectionState{StateConnected, StateIdle})
	c.Assert(edges[5:], qt.DeepEquals, [][2]ConnectionState{
		{StateIdle, StateStarting},
		{StateStarting, StateScanning},
		{StateScanning, StateConnecting},
		{StateConnecting, StateConnected},
	})
}

func TestSupervisorStartFailureIsFatal(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	errStart := errors.New("bad start parameters")
	sim := NewSimRadio(SimConfig{StartErr: errStart}, clk)
	ctrl, _ := sim.Wifi()
	sup := NewWifiSupervisor(ctrl, SupervisorConfig{
		Credentials: NewStationCredentials("home", "", ""),
		Cooldown:    cooldown,
		Clock:       clk,
	})
	err := sup.Run(context.Background())
	c.Assert(err, qt.ErrorIs, errStart)
	c.Assert(IsFatal(err), qt.IsTrue)
	c.Assert(callsOf(sim, "start"), qt.HasLen, 1)
	c.Assert(callsOf(sim, "connect"), qt.HasLen, 0)
	c.Assert(sup.State(), qt.Equals, StateStarting)
}

func TestSupervisorScanFailureDoesNotBlockConnect(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{ScanErr: errors.New("scan timeout")}, clk)
	sup, stop := runSupervisor(c, sim, clk, nil)
	waitFor(t, "connected", func() bool { return sup.State() == StateConnected })
	c.Assert(stop(), qt.ErrorIs, context.Canceled)
	c.Assert(callsOf(sim, "connect"), qt.HasLen, 1)
}

func TestSupervisorOnlyFollowsLegalEdges(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{AccessPoints: testAccessPoints, ConnectFailures: 3}, clk)
	var rec transitions
	sup, stop := runSupervisor(c, sim, clk, &rec)
	// three failed attempts, then one connect per association
	connectedAfter := func(n int) func() bool {
		return func() bool {
			return len(callsOf(sim, "connect")) == n && sup.State() == StateConnected
		}
	}
	for i := 0; i < 4; i++ {
		waitFor(t, "connected", connectedAfter(4+i))
		sim.Disconnect()
	}
	waitFor(t, "connected", connectedAfter(8))
	c.Assert(stop(), qt.ErrorIs, context.Canceled)

	edges := rec.get()
	c.Assert(edges[0][0], qt.Equals, StateIdle)
	for i, e := range edges {
		c.Assert(e[0].CanTransition(e[1]), qt.IsTrue, qt.Commentf("edge %d: %s -> %s", i, e[0], e[1]))
		if i > 0 {
			c.Assert(e[0], qt.Equals, edges[i-1][1])
		}
	}
}

// logBuffer collects log output from concurrent writers.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stuckConnect associates only when the context ends.
type stuckConnect struct {
	*SimRadio
}

func (s stuckConnect) Connect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisorCancelIsNotAnError(t *testing.T) {
	c := qt.New(t)
	clk := newFakeClock()
	sim := NewSimRadio(SimConfig{AccessPoints: testAccessPoints}, clk)
	var logs logBuffer
	sup := NewWifiSupervisor(stuckConnect{sim}, SupervisorConfig{
		Credentials: NewStationCredentials("home", "secret", "false"),
		Cooldown:    cooldown,
		Clock:       clk,
		Logger:      NewLogger(&logs, slog.LevelDebug),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitFor(t, "connecting", func() bool { return sup.State() == StateConnecting })
	cancel()
	select {
	case err := <-done:
		c.Assert(err, qt.ErrorIs, context.Canceled)
	case <-time.After(5 * time.Second):
		c.Fatal("supervisor did not stop")
	}
	c.Assert(strings.Contains(logs.String(), "level=ERROR"), qt.IsFalse, qt.Commentf("%s", logs.String()))
	c.Assert(strings.Contains(logs.String(), "wifi supervisor cancelled"), qt.IsTrue)
}
