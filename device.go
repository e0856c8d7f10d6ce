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
	"log/slog"
	"net"
)

// Network is the station network stack: pumped by the runner and
// observed by the readiness gate.
type Network interface {
	Interface
	LinkStatus
}

// Device is a hardware abstraction
type Device interface {
	// LED on or off (if applicable)
	LED(on bool)

	// Radio initializes the radio silicon. Called once at boot.
	Radio(logger *slog.Logger) (RadioHardware, error)

	// Network creates the network stack on the wifi capability.
	Network(wifi *WifiCapability, cfg *Config, logger *slog.Logger) (Network, error)

	// Listen for TCP connections on the station interface.
	Listen(port uint16) (net.Listener, error)
}
