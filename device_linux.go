//go:build !rp2350

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
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
)

// HostDevice runs on a development host with a simulated radio.
type HostDevice struct {
	sim *SimRadio
	led atomic.Bool
}

// LED on or off (recorded only)
func (dev *HostDevice) LED(on bool) { dev.led.Store(on) }

// LEDState returns the last LED setting.
func (dev *HostDevice) LEDState() bool { return dev.led.Load() }

// Sim returns the simulated radio.
func (dev *HostDevice) Sim() *SimRadio { return dev.sim }

// Initialize device
func InitDevice() Device {
	return NewHostDevice(NewSimRadio(SimConfig{
		MAC: [6]byte{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
		AccessPoints: []AccessPoint{
			{SSID: "office", BSSID: [6]byte{0x10, 0x7b, 0x44, 0x01, 0x02, 0x03}, Channel: 1, RSSI: -48},
			{SSID: "guest", BSSID: [6]byte{0x10, 0x7b, 0x44, 0x01, 0x02, 0x04}, Channel: 6, RSSI: -61},
			{BSSID: [6]byte{0x10, 0x7b, 0x44, 0x01, 0x02, 0x05}, Channel: 11, RSSI: -70, Hidden: true},
		},
		LeaseAfter: 3,
	}, nil))
}

// NewHostDevice wraps a simulated radio.
func NewHostDevice(sim *SimRadio) *HostDevice {
	return &HostDevice{sim: sim}
}

// Radio returns the simulated radio.
func (dev *HostDevice) Radio(logger *slog.Logger) (RadioHardware, error) {
	return dev.sim, nil
}

// Network returns the simulated network stack.
func (dev *HostDevice) Network(wifi *WifiCapability, cfg *Config, logger *slog.Logger) (Network, error) {
	return dev.sim.Network(), nil
}

// Listen returns a TCP listener on the given port.
func (dev *HostDevice) Listen(port uint16) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}

// DeviceLogger writes to stderr.
func DeviceLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, level)
}
