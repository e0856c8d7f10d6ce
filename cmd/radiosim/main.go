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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfix/radiosup"
	"github.com/spf13/cobra"
)

var (
	ssid            string
	passwd          string
	hidden          bool
	connectFailures int
	leaseAfter      int
	disconnectAfter time.Duration
	duration        time.Duration
	statusPort      uint16
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "radiosim",
	Short: "Run the connectivity supervisor against a simulated radio",
	Long: `radiosim boots the supervisor on a simulated Pico 2 W radio: it joins
the configured network, waits for a DHCP lease and brings up the BLE host.
The status namespace is served over 9p on the status port.

Example:
  radiosim --ssid office --connect-failures 2 --disconnect-after 20s`,
	SilenceUsage: true,
	RunE:         runSim,
}

func init() {
	rootCmd.Flags().StringVar(&ssid, "ssid", "office", "Network name to join")
	rootCmd.Flags().StringVar(&passwd, "passwd", "", "Network passphrase")
	rootCmd.Flags().BoolVar(&hidden, "hidden", false, "Network does not broadcast its name")
	rootCmd.Flags().IntVar(&connectFailures, "connect-failures", 0, "Number of rejected associations")
	rootCmd.Flags().IntVar(&leaseAfter, "lease-after", 3, "Stack polls until DHCP binds")
	rootCmd.Flags().DurationVar(&disconnectAfter, "disconnect-after", 0, "Drop the association after being ready (0: never)")
	rootCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this time (0: run until interrupted)")
	rootCmd.Flags().Uint16Var(&statusPort, "status-port", 5640, "9p status namespace port (0: disabled)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runSim boots the system on a scripted radio and runs it.
func runSim(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := radiosup.DeviceLogger(level)

	sim := radiosup.NewSimRadio(radiosup.SimConfig{
		MAC: [6]byte{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
		AccessPoints: []radiosup.AccessPoint{
			{SSID: ssid, BSSID: [6]byte{0x10, 0x7b, 0x44, 0x01, 0x02, 0x03}, Channel: 6, RSSI: -52, Hidden: hidden},
			{SSID: "guest", BSSID: [6]byte{0x10, 0x7b, 0x44, 0x01, 0x02, 0x04}, Channel: 1, RSSI: -67},
		},
		ConnectFailures: connectFailures,
		LeaseAfter:      leaseAfter,
	}, nil)
	dev := radiosup.NewHostDevice(sim)

	hideFlag := "false"
	if hidden {
		hideFlag = "true"
	}
	cfg := radiosup.DefaultConfig(radiosup.NewStationCredentials(ssid, passwd, hideFlag))
	cfg.StatusPort = statusPort

	sys, err := radiosup.Boot(dev, cfg, radiosup.BootOptions{
		Logger: logger,
		Observer: func(from, to radiosup.ConnectionState) {
			logger.Debug("state", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	if err != nil {
		return fmt.Errorf("boot (status %d): %w", radiosup.StatusFor(err), err)
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-sys.Ready():
		}
		logger.Info("system ready",
			slog.String("lease", sys.Lease().String()),
			slog.String("ble", sys.Host().String()))
		if disconnectAfter <= 0 {
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(disconnectAfter):
			logger.Info("dropping association")
			sim.Disconnect()
		}
	}()

	err = sys.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("stopped", slog.Uint64("heartbeats", sys.Heartbeats()))
		return nil
	}
	return fmt.Errorf("run (status %d): %w", radiosup.StatusFor(err), err)
}
