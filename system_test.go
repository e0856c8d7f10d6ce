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
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func testConfig() Config {
	cfg := DefaultConfig(StationCredentials{SSID: "home", Passphrase: "secret"})
	cfg.StatusPort = 0
	return cfg
}

// runSystem boots a simulated device and runs it in the background.
func runSystem(c *qt.C, sc SimConfig, cfg Config) (*System, *HostDevice, func() error) {
	clk := newFakeClock()
	if sc.AccessPoints == nil {
		sc.AccessPoints = testAccessPoints
	}
	dev := NewHostDevice(NewSimRadio(sc, clk))
	sys, err := Boot(dev, cfg, BootOptions{Clock: clk})
	c.Assert(err, qt.IsNil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()
	return sys, dev, func() error {
		cancel()
		return <-done
	}
}

func readFile(c *qt.C, ns *Namespace, p string) string {
	e, err := ns.Get(p)
	c.Assert(err, qt.IsNil)
	data, err := e.file.Read()
	c.Assert(err, qt.IsNil)
	return string(data)
}

func TestSystemBecomesReady(t *testing.T) {
	c := qt.New(t)
	sys, dev, stop := runSystem(c, SimConfig{LeaseAfter: 3}, testConfig())

	select {
	case <-sys.Ready():
	case <-time.After(5 * time.Second):
		c.Fatal("system not ready")
	}
	lease := sys.Lease()
	c.Assert(lease.Addr.IsValid(), qt.IsTrue)
	c.Assert(lease.CIDRBits, qt.Equals, 24)
	c.Assert(sys.Supervisor.State(), qt.Equals, StateConnected)

	host := sys.Host()
	c.Assert(host, qt.Not(qt.IsNil))
	c.Assert(host.Connections.Len(), qt.Equals, 1)
	c.Assert(host.Channels.Len(), qt.Equals, 1)
	c.Assert(host.Controller.slots.Len(), qt.Equals, 20)

	c.Assert(callsOf(dev.Sim(), "scan"), qt.HasLen, 1)
	waitFor(t, "heartbeat", func() bool { return sys.Heartbeats() > 0 })

	ns := sys.Namespace()
	c.Assert(readFile(c, ns, "/net/state"), qt.Equals, "connected\n")
	c.Assert(readFile(c, ns, "/net/lease"), qt.Equals, lease.String()+"\n")
	c.Assert(readFile(c, ns, "/ble/host"), qt.Equals, "connections=0/1 channels=0/1 commands=0/20\n")

	c.Assert(stop(), qt.ErrorIs, context.Canceled)
}

func TestSystemLeaseSurvivesReconnect(t *testing.T) {
	c := qt.New(t)
	sys, dev, stop := runSystem(c, SimConfig{LeaseAfter: 1}, testConfig())
	<-sys.Ready()

	dev.Sim().Disconnect()
	waitFor(t, "reconnect", func() bool { return len(callsOf(dev.Sim(), "connect")) >= 2 })
	waitFor(t, "fresh lease", func() bool {
		_, ok := sys.network.ConfigV4()
		return ok
	})
	c.Assert(sys.Host(), qt.Not(qt.IsNil))
	c.Assert(stop(), qt.ErrorIs, context.Canceled)
}

func TestSystemBootFailures(t *testing.T) {
	c := qt.New(t)
	c.Run("no SSID", func(c *qt.C) {
		cfg := testConfig()
		cfg.Credentials.SSID = ""
		_, err := Boot(NewHostDevice(NewSimRadio(SimConfig{}, nil)), cfg, BootOptions{})
		c.Assert(IsFatal(err), qt.IsTrue)
		c.Assert(StatusFor(err), qt.Equals, StatCONF)
	})
	c.Run("too many sockets", func(c *qt.C) {
		cfg := testConfig()
		cfg.Net.UDPPorts = 3
		_, err := Boot(NewHostDevice(NewSimRadio(SimConfig{}, nil)), cfg, BootOptions{})
		c.Assert(err, qt.ErrorIs, ErrPoolCapacity)
		c.Assert(StatusFor(err), qt.Equals, StatPOOL)
	})
}

func TestSystemRunFailures(t *testing.T) {
	c := qt.New(t)
	c.Run("start", func(c *qt.C) {
		clk := newFakeClock()
		dev := NewHostDevice(NewSimRadio(SimConfig{StartErr: errors.New("firmware upload")}, clk))
		sys, err := Boot(dev, testConfig(), BootOptions{Clock: clk})
		c.Assert(err, qt.IsNil)
		err = sys.Run(context.Background())
		c.Assert(IsFatal(err), qt.IsTrue)
		c.Assert(StatusFor(err), qt.Equals, StatWIFI)
	})
	c.Run("ble", func(c *qt.C) {
		clk := newFakeClock()
		dev := NewHostDevice(NewSimRadio(SimConfig{NoBLE: true, AccessPoints: testAccessPoints}, clk))
		sys, err := Boot(dev, testConfig(), BootOptions{Clock: clk})
		c.Assert(err, qt.IsNil)
		err = sys.Run(context.Background())
		c.Assert(err, qt.ErrorIs, ErrRadioUnavailable)
		c.Assert(StatusFor(err), qt.Equals, StatBLE)
		c.Assert(sys.Host(), qt.IsNil)
	})
}
