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
	"time"
)

// reference capacities
const (
	NetSocketsMax    = 3  // network stack sockets (DHCP included)
	ConnectionsMax   = 1  // simultaneous BLE connections
	L2CAPChannelsMax = 1  // L2CAP channels per connection
	CommandSlotsMax  = 20 // outstanding HCI commands
)

// StationCredentials of the network to join. Immutable after boot.
type StationCredentials struct {
	SSID       string
	Passphrase string
	Hidden     bool // network does not broadcast its SSID
}

// NewStationCredentials from the build-time strings. The hidden flag is
// set only by the literal "true".
func NewStationCredentials(ssid, passwd, hidden string) StationCredentials {
	return StationCredentials{
		SSID:       ssid,
		Passphrase: passwd,
		Hidden:     hidden == "true",
	}
}

// NetResources requested from the network socket pool. One extra UDP
// socket is always reserved for the DHCP client.
type NetResources struct {
	UDPPorts int
	TCPPorts int
}

// sockets returns the total number of socket slots needed.
func (r NetResources) sockets() int {
	return r.UDPPorts + r.TCPPorts + 1
}

// check the socket request against NetSocketsMax.
func (r NetResources) check() error {
	if r.UDPPorts < 0 || r.TCPPorts < 0 {
		return fmt.Errorf("%w: udp %d, tcp %d", ErrPoolConfig, r.UDPPorts, r.TCPPorts)
	}
	if n := r.sockets(); n > NetSocketsMax {
		return fmt.Errorf("%w: capacity %d, requested %d", ErrPoolCapacity, NetSocketsMax, n)
	}
	return nil
}

// Config for the connectivity supervisor.
type Config struct {
	Credentials StationCredentials

	Cooldown     time.Duration // wait before reconnecting
	PollInterval time.Duration // link/IP readiness poll
	IdleWait     time.Duration // runner wait when rx and tx stall
	Heartbeat    time.Duration // idle loop period

	Hostname string       // DHCP requested hostname
	Net      NetResources // network stack sockets
	Host     HostConfig   // BLE host capacities

	StatusPort uint16 // 9p status namespace (0: disabled)
}

// DefaultConfig returns the reference configuration for the given
// credentials.
func DefaultConfig(cred StationCredentials) Config {
	return Config{
		Credentials:  cred,
		Cooldown:     5000 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		IdleWait:     51 * time.Millisecond,
		Heartbeat:    time.Second,
		Hostname:     "radiosup",
		Net:          NetResources{UDPPorts: 1, TCPPorts: 1},
		Host: HostConfig{
			MaxConnections: ConnectionsMax,
			MaxChannels:    L2CAPChannelsMax,
			CommandSlots:   CommandSlotsMax,
		},
		StatusPort: 564,
	}
}

// Validate checks that required settings are present and the network
// socket request fits the stack.
func (cfg *Config) Validate() error {
	if len(cfg.Credentials.SSID) == 0 {
		return fatal("config", ErrNoSSID)
	}
	if cfg.Cooldown <= 0 || cfg.PollInterval <= 0 || cfg.IdleWait <= 0 || cfg.Heartbeat <= 0 {
		return fatal("config", ErrInterval)
	}
	if err := cfg.Net.check(); err != nil {
		return fatal("config", err)
	}
	return nil
}
