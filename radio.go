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
	"io"
	"net"
	"sync"
	"time"
)

// Event reported by the wifi driver.
type Event int

// driver events
const (
	EventStaConnected Event = iota
	EventStaDisconnected
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventStaConnected:
		return "sta-connected"
	case EventStaDisconnected:
		return "sta-disconnected"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ScanConfig for access point discovery.
type ScanConfig struct {
	ShowHidden bool          // report networks not broadcasting an SSID
	Active     bool          // send probe requests (passive otherwise)
	MinDwell   time.Duration // per channel (active scan)
	MaxDwell   time.Duration // per channel
}

// AccessPoint found by a scan.
type AccessPoint struct {
	SSID    string
	BSSID   [6]byte
	Channel int
	RSSI    int
	Hidden  bool
}

// String returns a human-readable access point.
func (ap AccessPoint) String() string {
	ssid := ap.SSID
	if ap.Hidden {
		ssid = "<hidden>"
	}
	return fmt.Sprintf("%s [%s] ch=%d rssi=%d", ssid, net.HardwareAddr(ap.BSSID[:]), ap.Channel, ap.RSSI)
}

// WifiController drives the station side of the radio.
type WifiController interface {
	SetConfig(cred StationCredentials) error
	IsStarted() (bool, error)
	Start(ctx context.Context) error
	Scan(ctx context.Context, cfg ScanConfig) ([]AccessPoint, error)
	Connect(ctx context.Context) error
	IsConnected() (bool, error)
	WaitForEvent(ctx context.Context, ev Event) error
}

// NetDevice moves raw ethernet frames between radio and network stack.
type NetDevice interface {
	HardwareAddr6() ([6]byte, error)
	PollOne() (bool, error)
	SendEth(pkt []byte) error
	RecvEthHandle(handler func(pkt []byte) error)
}

// HCITransport carries HCI packets to the BLE controller.
type HCITransport interface {
	io.ReadWriter
	Buffered() int
}

// RadioHardware is the initialized radio silicon.
type RadioHardware interface {
	Wifi() (WifiController, NetDevice)
	BLE() (HCITransport, error)
}

//----------------------------------------------------------------------

// WifiCapability grants exclusive use of the station side of the radio.
type WifiCapability struct {
	Controller WifiController
	Device     NetDevice
}

// BleCapability grants exclusive use of the BLE transport.
type BleCapability struct {
	Transport HCITransport
	used      bool
}

// Radio is the single physical radio. It is split once into a wifi
// capability and, after wifi bring-up completed, a BLE capability.
type Radio struct {
	mu       sync.Mutex
	hw       RadioHardware
	wifi     bool // wifi capability handed out
	ble      bool // ble capability handed out
	released bool // wifi bring-up complete
}

// NewRadio takes ownership of the radio hardware.
func NewRadio(hw RadioHardware) *Radio {
	return &Radio{hw: hw}
}

// SplitWifi hands out the wifi controller and device. Only once.
func (r *Radio) SplitWifi() (*WifiCapability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wifi {
		return nil, fatal("split wifi", ErrRadioTaken)
	}
	ctrl, dev := r.hw.Wifi()
	if ctrl == nil || dev == nil {
		return nil, fatal("split wifi", ErrRadioUnavailable)
	}
	r.wifi = true
	return &WifiCapability{Controller: ctrl, Device: dev}, nil
}

// CompleteWifiBringup marks the wifi radio configuration as finished.
// From now on the BLE capability may drive the radio.
func (r *Radio) CompleteWifiBringup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
}

// TakeBLE hands out the BLE transport. Fails while wifi bring-up is in
// progress, and on a second call.
func (r *Radio) TakeBLE() (*BleCapability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.ble:
		return nil, fatal("take ble", ErrRadioTaken)
	case r.wifi && !r.released:
		return nil, fatal("take ble", ErrRadioBusy)
	}
	t, err := r.hw.BLE()
	if err != nil {
		return nil, fatal("take ble", fmt.Errorf("%w: %w", ErrRadioUnavailable, err))
	}
	if t == nil {
		return nil, fatal("take ble", ErrRadioUnavailable)
	}
	r.ble = true
	return &BleCapability{Transport: t}, nil
}
