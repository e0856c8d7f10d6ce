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
	"sync"
)

// HostConfig holds the fixed capacities of the BLE host.
type HostConfig struct {
	MaxConnections int // simultaneous connections
	MaxChannels    int // L2CAP channels per connection
	CommandSlots   int // outstanding HCI commands
}

// BleConn is a connection slot of the BLE host.
type BleConn struct {
	Handle uint16
}

// L2CAPChannel is a channel slot of the BLE host.
type L2CAPChannel struct {
	CID    uint16
	Handle uint16
}

// hciCommand is an outstanding command slot of the controller.
type hciCommand struct {
	Opcode uint16
}

// HCIController adapts a raw HCI transport to the host. Commands are
// limited by a fixed number of slots.
type HCIController struct {
	mu        sync.Mutex
	transport HCITransport
	slots     *ResourcePool[hciCommand]
}

// HCI packet indicator for commands (H4 framing)
const hciCommandPacket = 0x01

// Send an HCI command with the given opcode and parameters. Returns the
// slot index that must be released once the command completed.
func (c *HCIController) Send(opcode uint16, params []byte) (int, error) {
	if len(params) > 255 {
		return -1, fmt.Errorf("hci command parameters too long: %d", len(params))
	}
	i, slot, err := c.slots.Acquire()
	if err != nil {
		return -1, err
	}
	slot.Opcode = opcode
	pkt := make([]byte, 0, 4+len(params))
	pkt = append(pkt, hciCommandPacket, byte(opcode), byte(opcode>>8), byte(len(params)))
	pkt = append(pkt, params...)
	c.mu.Lock()
	_, err = c.transport.Write(pkt)
	c.mu.Unlock()
	if err != nil {
		c.slots.Release(i)
		return -1, err
	}
	return i, nil
}

// Complete releases a command slot.
func (c *HCIController) Complete(slot int) {
	c.slots.Release(slot)
}

// Pending returns the number of outstanding commands.
func (c *HCIController) Pending() int {
	return c.slots.InUse()
}

// BleHost is the constructed BLE host. Its protocol loop is driven
// elsewhere.
type BleHost struct {
	Controller  *HCIController
	Connections *ResourcePool[BleConn]
	Channels    *ResourcePool[L2CAPChannel]
	cfg         HostConfig
}

// Config returns the capacities the host was built with.
func (h *BleHost) Config() HostConfig {
	return h.cfg
}

// String returns a human-readable host summary.
func (h *BleHost) String() string {
	return fmt.Sprintf("connections=%d/%d channels=%d/%d commands=%d/%d",
		h.Connections.InUse(), h.Connections.Len(),
		h.Channels.InUse(), h.Channels.Len(),
		h.Controller.Pending(), h.Controller.slots.Len())
}

// NewBleHost constructs the resource pools of the BLE host and binds it
// to the radio transport. A capability builds one host only; failures
// are fatal.
func NewBleHost(cp *BleCapability, cfg HostConfig, logger *slog.Logger) (*BleHost, error) {
	if logger == nil {
		logger = discardLogger()
	}
	if cp == nil || cp.Transport == nil {
		return nil, fatal("ble host", ErrRadioUnavailable)
	}
	if cp.used {
		return nil, fatal("ble host", ErrRadioTaken)
	}
	conns, err := NewResourcePool[BleConn](ConnectionsMax, cfg.MaxConnections)
	if err != nil {
		return nil, fatal("ble connections", err)
	}
	if cfg.MaxChannels > L2CAPChannelsMax {
		return nil, fatal("ble channels", fmt.Errorf("%w: capacity %d, requested %d", ErrPoolCapacity, L2CAPChannelsMax, cfg.MaxChannels))
	}
	chans, err := NewResourcePool[L2CAPChannel](ConnectionsMax*L2CAPChannelsMax, cfg.MaxConnections*cfg.MaxChannels)
	if err != nil {
		return nil, fatal("ble channels", err)
	}
	cmds, err := NewResourcePool[hciCommand](CommandSlotsMax, cfg.CommandSlots)
	if err != nil {
		return nil, fatal("hci commands", err)
	}
	cp.used = true
	h := &BleHost{
		Controller: &HCIController{
			transport: cp.Transport,
			slots:     cmds,
		},
		Connections: conns,
		Channels:    chans,
		cfg:         cfg,
	}
	logger.Info("BLE host constructed",
		slog.Int("connections", cfg.MaxConnections),
		slog.Int("channels", cfg.MaxChannels),
		slog.Int("commands", cfg.CommandSlots),
	)
	return h, nil
}
