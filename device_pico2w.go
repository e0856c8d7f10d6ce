//go:build rp2350

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
	"machine"
	"net"
	"sync"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/stacks"
)

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref   *cyw43439.Device // reference to device
	stack *Stack           // station network stack
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// Initialize device
func InitDevice() Device {
	// access device
	dev := new(Pico2WDevice)
	dev.ref = cyw43439.NewPicoWDevice()
	return dev
}

// DeviceLogger writes to the serial console.
func DeviceLogger(level slog.Level) *slog.Logger {
	return NewLogger(machine.Serial, level)
}

// Radio loads the wifi and bluetooth firmware into the radio.
func (dev *Pico2WDevice) Radio(logger *slog.Logger) (RadioHardware, error) {
	cfg := cyw43439.DefaultWifiBluetoothConfig()
	cfg.Logger = logger
	logger.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err := dev.ref.Init(cfg); err != nil {
		return nil, err
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))
	link := &picoLink{dev: dev.ref, lost: make(chan struct{}, 1)}
	return &picoRadio{
		wifi: &picoWifi{dev: dev.ref, link: link},
		link: link,
		hci:  &picoHCI{dev: dev.ref},
	}, nil
}

// Network creates the seqs stack on the station interface.
func (dev *Pico2WDevice) Network(wifi *WifiCapability, cfg *Config, logger *slog.Logger) (Network, error) {
	stack, err := NewStationStack(wifi, cfg, logger)
	if err != nil {
		return nil, err
	}
	dev.stack = stack
	return stack, nil
}

// Listen returns a TCP listener on the station interface.
func (dev *Pico2WDevice) Listen(port uint16) (net.Listener, error) {
	if dev.stack == nil {
		return nil, ErrRadioUnavailable
	}
	listener, err := stacks.NewTCPListener(dev.stack.PortStack(), stacks.TCPListenerConfig{
		MaxConnections: 1,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, err
	}
	if err = listener.StartListening(port); err != nil {
		return nil, err
	}
	return listener, nil
}

//----------------------------------------------------------------------

// picoRadio is the initialized cyw43439.
type picoRadio struct {
	wifi *picoWifi
	link *picoLink
	hci  *picoHCI
}

func (r *picoRadio) Wifi() (WifiController, NetDevice) { return r.wifi, r.link }
func (r *picoRadio) BLE() (HCITransport, error)        { return r.hci, nil }

// Number of consecutive poll errors taken as loss of association.
const maxPollErrors = 10

// picoLink is the ethernet side of the cyw43439. Persistent poll errors
// are reported as a lost link.
type picoLink struct {
	dev  *cyw43439.Device
	errs int
	lost chan struct{}
}

func (l *picoLink) HardwareAddr6() ([6]byte, error) { return l.dev.HardwareAddr6() }
func (l *picoLink) SendEth(pkt []byte) error        { return l.dev.SendEth(pkt) }

func (l *picoLink) RecvEthHandle(handler func(pkt []byte) error) {
	l.dev.RecvEthHandle(handler)
}

func (l *picoLink) PollOne() (bool, error) {
	got, err := l.dev.PollOne()
	if err == nil {
		l.errs = 0
		return got, nil
	}
	if l.errs++; l.errs == maxPollErrors {
		select {
		case l.lost <- struct{}{}:
		default:
		}
	}
	return got, err
}

// picoWifi is the station controller of the cyw43439. The firmware is
// running after Init, so starting only latches the configuration.
type picoWifi struct {
	mu        sync.Mutex
	dev       *cyw43439.Device
	link      *picoLink
	cred      StationCredentials
	started   bool
	connected bool
}

func (w *picoWifi) Capabilities() string { return "station,ble" }

func (w *picoWifi) SetConfig(cred StationCredentials) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cred = cred
	return nil
}

func (w *picoWifi) IsStarted() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started, nil
}

func (w *picoWifi) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.cred.SSID) == 0 {
		return ErrNoSSID
	}
	w.started = true
	return nil
}

func (w *picoWifi) Scan(ctx context.Context, cfg ScanConfig) ([]AccessPoint, error) {
	return nil, ErrScanUnsupported
}

func (w *picoWifi) Connect(ctx context.Context) error {
	w.mu.Lock()
	cred := w.cred
	w.mu.Unlock()
	if err := w.dev.JoinWPA2(cred.SSID, cred.Passphrase); err != nil {
		return err
	}
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
	// forget errors from a previous association
	select {
	case <-w.link.lost:
	default:
	}
	return nil
}

func (w *picoWifi) IsConnected() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected, nil
}

func (w *picoWifi) WaitForEvent(ctx context.Context, ev Event) error {
	if ev != EventStaDisconnected {
		return ErrUnknownEvent
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.link.lost:
	}
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()
	return nil
}

// picoHCI is the bluetooth transport of the cyw43439.
type picoHCI struct {
	dev *cyw43439.Device
}

func (h *picoHCI) Buffered() int {
	return h.dev.BufferedHCI()
}

func (h *picoHCI) Read(buf []byte) (int, error) {
	r, err := h.dev.HCIReadWriter()
	if err != nil {
		return 0, err
	}
	return r.Read(buf)
}

func (h *picoHCI) Write(buf []byte) (int, error) {
	w, err := h.dev.HCIReadWriter()
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}
