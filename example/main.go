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

package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bfix/radiosup"
)

// WiFi credentials and 9p port (set by linker flags)
var (
	SSID   string
	Passwd string
	Hidden string
	Host   string
	Port   string
)

// run the connectivity supervisor
func main() {
	// access device
	dev := radiosup.InitDevice()
	state := radiosup.NewStatus(dev)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go state.Run(ctx)
	defer state.Trap(30 * time.Second)

	logger := radiosup.DeviceLogger(slog.LevelInfo)
	cfg := radiosup.DefaultConfig(radiosup.NewStationCredentials(SSID, Passwd, Hidden))
	if len(Host) > 0 {
		cfg.Hostname = Host
	}
	if len(Port) > 0 {
		port, err := strconv.ParseUint(Port, 10, 16)
		if err != nil {
			logger.Warn("invalid port; status namespace disabled", slog.String("port", Port))
			state.Set(radiosup.StatSRV, 3)
			port = 0
		}
		cfg.StatusPort = uint16(port)
	}

	sys, err := radiosup.Boot(dev, cfg, radiosup.BootOptions{Logger: logger})
	if err != nil {
		logger.Error("boot failed", slog.String("err", err.Error()))
		state.Set(radiosup.StatusFor(err), 0)
		return
	}
	if err = sys.Run(ctx); err != nil {
		logger.Error("supervisor stopped", slog.String("err", err.Error()))
		state.Set(radiosup.StatusFor(err), 0)
	}

	// srv tcp!<host>!9fs radio
	// mount /srv/radio /n/radio
	// cat /n/radio/net/state
	// cat /n/radio/ble/host
	// unmount /n/radio
	// rm /srv/radio
}
