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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// BootOptions are the optional collaborators of Boot.
type BootOptions struct {
	Clock    Clock         // defaults to the system clock
	Logger   *slog.Logger  // defaults to a discarding logger
	Observer StateObserver // connection state transitions
}

// System is the booted connectivity supervisor.
type System struct {
	dev    Device
	cfg    Config
	clk    Clock
	logger *slog.Logger

	radio      *Radio
	network    Network
	Supervisor *WifiSupervisor
	Runner     *NetworkStackRunner
	Gate       *LinkReadinessGate

	mu     sync.Mutex
	lease  NetworkLease
	host   *BleHost
	ready  chan struct{}
	beats  atomic.Uint64
	booted time.Time
}

// Boot acquires the radio, splits off the wifi capability and builds
// the supervisor, network stack and runner. Every error is fatal.
func Boot(dev Device, cfg Config, opts BootOptions) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clk, logger := opts.Clock, opts.Logger
	if clk == nil {
		clk = SystemClock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	hw, err := dev.Radio(logger)
	if err != nil {
		return nil, fatal("radio init", err)
	}
	logger.Info("radio initialized")
	radio := NewRadio(hw)
	wifi, err := radio.SplitWifi()
	if err != nil {
		return nil, err
	}
	network, err := dev.Network(wifi, &cfg, logger)
	if err != nil {
		return nil, fatal("network init", err)
	}
	s := &System{
		dev:     dev,
		cfg:     cfg,
		clk:     clk,
		logger:  logger,
		radio:   radio,
		network: network,
		ready:   make(chan struct{}),
		booted:  clk.Now(),
	}
	s.Supervisor = NewWifiSupervisor(wifi.Controller, SupervisorConfig{
		Credentials: cfg.Credentials,
		Cooldown:    cfg.Cooldown,
		Clock:       clk,
		Logger:      logger,
		Observer:    opts.Observer,
	})
	s.Runner = NewNetworkStackRunner(wifi.Device, network, cfg.IdleWait, clk, logger)
	s.Gate = NewLinkReadinessGate(network, cfg.PollInterval, clk, logger)
	return s, nil
}

// Ready is closed once the network is up and the BLE host exists.
func (s *System) Ready() <-chan struct{} {
	return s.ready
}

// Lease returns the lease the system became ready with.
func (s *System) Lease() NetworkLease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lease
}

// Host returns the BLE host (nil before ready).
func (s *System) Host() *BleHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Heartbeats returns the number of idle loop iterations.
func (s *System) Heartbeats() uint64 {
	return s.beats.Load()
}

// Run the supervisor and the network stack runner, wait for the network
// and construct the BLE host, then loop idle. Returns on the first fatal
// error or when ctx is done.
func (s *System) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Supervisor.Run(gctx) })
	g.Go(func() error { return s.Runner.Run(gctx) })
	g.Go(func() error {
		if err := s.bringup(gctx); err != nil {
			return err
		}
		if s.cfg.StatusPort != 0 {
			s.serveStatus(gctx, g)
		}
		return s.idle(gctx)
	})
	return g.Wait()
}

// bringup waits for the network and builds the BLE host.
func (s *System) bringup(ctx context.Context) error {
	lease, err := s.Gate.AwaitReady(ctx)
	if err != nil {
		return err
	}
	s.radio.CompleteWifiBringup()
	cp, err := s.radio.TakeBLE()
	if err != nil {
		return err
	}
	host, err := NewBleHost(cp, s.cfg.Host, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lease = lease
	s.host = host
	s.mu.Unlock()
	close(s.ready)
	return nil
}

// serveStatus publishes the status namespace over 9p. Failing to
// listen is logged only.
func (s *System) serveStatus(ctx context.Context, g *errgroup.Group) {
	lst, err := s.dev.Listen(s.cfg.StatusPort)
	if err != nil {
		s.logger.Warn("status namespace not served", slog.String("err", err.Error()))
		return
	}
	ns := s.Namespace()
	s.logger.Info("serving status namespace", slog.Int("port", int(s.cfg.StatusPort)))
	g.Go(func() error {
		<-ctx.Done()
		_ = lst.Close()
		return nil
	})
	g.Go(func() error {
		if err := ns.Serve(lst); err != nil && ctx.Err() == nil {
			s.logger.Warn("status namespace stopped", slog.String("err", err.Error()))
		}
		return nil
	})
}

// idle toggles the LED once per heartbeat.
func (s *System) idle(ctx context.Context) error {
	led := true
	for {
		s.logger.Debug("============START============")
		if err := sleep(ctx, s.clk, 50*time.Millisecond); err != nil {
			return err
		}
		s.dev.LED(led)
		led = !led
		s.beats.Add(1)
		s.logger.Debug("============END============")
		if err := sleep(ctx, s.clk, s.cfg.Heartbeat); err != nil {
			return err
		}
	}
}

// Namespace builds the read-only status tree:
//
//	/net/state   connection state
//	/net/lease   IP configuration
//	/net/stats   runner counters
//	/ble/host    BLE host capacities
//	/sys/uptime  time since boot
func (s *System) Namespace() *Namespace {
	ns := NewNamespace("sys", "sys")
	_ = ns.NewDir("/net", 0555)
	_ = ns.NewDir("/ble", 0555)
	_ = ns.NewDir("/sys", 0555)
	_ = ns.NewFile("/net/state", 0444, NewLineFile(func() string {
		return s.Supervisor.State().String()
	}))
	_ = ns.NewFile("/net/lease", 0444, NewLineFile(func() string {
		if lease, ok := s.network.ConfigV4(); ok {
			return lease.String()
		}
		return "none"
	}))
	_ = ns.NewFile("/net/stats", 0444, NewLineFile(func() string {
		st := s.Runner.Stats()
		return fmt.Sprintf("rx=%d tx=%d dropped=%d", st.RxFrames, st.TxFrames, st.TxDropped)
	}))
	_ = ns.NewFile("/ble/host", 0444, NewLineFile(func() string {
		if h := s.Host(); h != nil {
			return h.String()
		}
		return "none"
	}))
	_ = ns.NewFile("/sys/uptime", 0444, NewLineFile(func() string {
		return s.clk.Now().Sub(s.booted).Truncate(time.Second).String()
	}))
	return ns
}
