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
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// status codes
const (
	StatUNK   = iota // unknown status (init)
	StatOK           // processing active
	StatDEV          // device failure
	StatCONF         // configuration missing
	StatRADIO        // radio initialization failed
	StatWIFI         // wifi configuration/start failed
	StatPOOL         // resource pool misconfigured
	StatBLE          // BLE host construction failed
	StatSRV          // can't serve status namespace
	StatEXCP         // exception (panic) occured
)

// StatusFor maps a fatal error to a status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return StatOK
	case errors.Is(err, ErrNoSSID):
		return StatCONF
	case errors.Is(err, ErrPoolConfig), errors.Is(err, ErrPoolCapacity):
		return StatPOOL
	}
	var e *Error
	if !errors.As(err, &e) {
		return StatDEV
	}
	switch {
	case e.Op == "radio init":
		return StatRADIO
	case strings.HasPrefix(e.Op, "wifi"):
		return StatWIFI
	case strings.HasPrefix(e.Op, "ble"), strings.HasPrefix(e.Op, "hci"), e.Op == "take ble":
		return StatBLE
	}
	return StatDEV
}

// Status handler.
// Show current status depending on hardware device.
type Status struct {
	dev    Device       // reference to device
	curr   atomic.Int32 // current state
	repeat atomic.Int32 // current repeat counter
}

// NewStatus creates a new status display
func NewStatus(dev Device) (state *Status) {
	state = new(Status)
	state.dev = dev
	state.curr.Store(StatOK)
	return
}

// Run the LED display: blink <state> times every five seconds until ctx
// is done. Codes above five are shown as long blinks for each five.
func (state *Status) Run(ctx context.Context) {
	pause := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	blink := func(on, off time.Duration) bool {
		state.dev.LED(true)
		if !pause(on) {
			return false
		}
		state.dev.LED(false)
		return pause(off)
	}
	for pause(5 * time.Second) {
		num := state.curr.Load()
		if num == StatOK {
			continue
		}
		for ; num > 5; num -= 5 {
			if !blink(1000*time.Millisecond, 300*time.Millisecond) {
				return
			}
		}
		for range num {
			if !blink(150*time.Millisecond, 150*time.Millisecond) {
				return
			}
		}
		if state.repeat.Add(-1) == 0 {
			state.curr.Store(StatOK)
		}
	}
}

// Set status and repeat <num> times (0: forever).
func (state *Status) Set(flag, num int) {
	if state != nil {
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
	}
}

// Get current state and repeat counter
func (state *Status) Get() (int, int) {
	return int(state.curr.Load()), int(state.repeat.Load())
}

// Trap critical failures (panic). Must be deferred directly.
func (state *Status) Trap(t time.Duration) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		if s == StatOK {
			state.Set(StatEXCP, 0)
		}
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	time.Sleep(t)
}
