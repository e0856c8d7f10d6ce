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
	"sync/atomic"
)

// ConnectionState of the wifi station.
type ConnectionState int32

// connection states
const (
	StateIdle       ConnectionState = iota // not associated
	StateStarting                          // configuring/starting the radio
	StateScanning                          // discovering access points
	StateConnecting                        // associating with the network
	StateConnected                         // associated
)

var stateNames = [...]string{"idle", "starting", "scanning", "connecting", "connected"}

// String returns the state name.
func (s ConnectionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CanTransition reports whether from s to next is a legal edge.
// Starting may skip Scanning when the radio was already started. A
// failed association falls back from Connecting to Idle, so every retry
// after the cooldown re-enters through Starting (and Starting->Connecting
// when the radio stays started).
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	switch s {
	case StateIdle:
		return next == StateStarting
	case StateStarting:
		return next == StateScanning || next == StateConnecting
	case StateScanning:
		return next == StateConnecting
	case StateConnecting:
		return next == StateConnected || next == StateIdle
	case StateConnected:
		return next == StateIdle
	}
	return false
}

// StateObserver is notified of every transition.
type StateObserver func(from, to ConnectionState)

// stateCell holds the current state. One writer (the supervisor),
// any number of readers.
type stateCell struct {
	v      atomic.Int32
	notify StateObserver
}

// Load returns the current state.
func (c *stateCell) Load() ConnectionState {
	return ConnectionState(c.v.Load())
}

// move to the next state. Panics on an illegal edge.
func (c *stateCell) move(next ConnectionState) {
	cur := c.Load()
	if !cur.CanTransition(next) {
		panic("illegal connection state transition " + cur.String() + " -> " + next.String())
	}
	c.v.Store(int32(next))
	if c.notify != nil {
		c.notify(cur, next)
	}
}
