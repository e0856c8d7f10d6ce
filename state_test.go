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
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStateTransitions(t *testing.T) {
	c := qt.New(t)
	legal := map[[2]ConnectionState]bool{
		{StateIdle, StateStarting}:        true,
		{StateStarting, StateScanning}:    true,
		{StateStarting, StateConnecting}:  true,
		{StateScanning, StateConnecting}:  true,
		{StateConnecting, StateConnected}: true,
		{StateConnecting, StateIdle}:      true,
		{StateConnected, StateIdle}:       true,
	}
	for from := StateIdle; from <= StateConnected; from++ {
		for to := StateIdle; to <= StateConnected; to++ {
			c.Check(from.CanTransition(to), qt.Equals, legal[[2]ConnectionState{from, to}],
				qt.Commentf("%s -> %s", from, to))
		}
	}
}

func TestStateNames(t *testing.T) {
	c := qt.New(t)
	c.Assert(StateIdle.String(), qt.Equals, "idle")
	c.Assert(StateConnected.String(), qt.Equals, "connected")
	c.Assert(ConnectionState(42).String(), qt.Equals, "state(42)")
}

func TestStateCellRejectsIllegalEdge(t *testing.T) {
	c := qt.New(t)
	var cell stateCell
	c.Assert(func() { cell.move(StateConnected) }, qt.PanicMatches, "illegal connection state transition idle -> connected")
	c.Assert(cell.Load(), qt.Equals, StateIdle)
}

func TestStateCellNotifies(t *testing.T) {
	c := qt.New(t)
	var rec transitions
	cell := stateCell{notify: rec.observe}
	cell.move(StateStarting)
	cell.move(StateConnecting)
	c.Assert(rec.get(), qt.DeepEquals, [][2]ConnectionState{
		{StateIdle, StateStarting},
		{StateStarting, StateConnecting},
	})
}
