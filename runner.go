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
	"log/slog"
	"sync/atomic"
	"time"
)

// Interface is the protocol side of a network interface: frames
// received from the device are fed in, outgoing frames are drained.
type Interface interface {
	RecvEth(frame []byte) error
	HandleEth(dst []byte) (int, error)
}

// readyNotifier is implemented by devices that can signal pending
// receive data.
type readyNotifier interface {
	Ready() <-chan struct{}
}

// Maximum frame size handled by the runner.
const MTU = 1500

// RunnerStats counts runner activity.
type RunnerStats struct {
	RxFrames  uint64
	TxFrames  uint64
	TxDropped uint64
}

// NetworkStackRunner pumps frames between device and stack. It must run
// for the lifetime of the interface or no packet moves.
type NetworkStackRunner struct {
	dev    NetDevice
	iface  Interface
	idle   time.Duration
	clk    Clock
	logger *slog.Logger

	rx, tx, dropped atomic.Uint64
}

// NewNetworkStackRunner binds the interface to the device.
func NewNetworkStackRunner(dev NetDevice, iface Interface, idle time.Duration, clk Clock, logger *slog.Logger) *NetworkStackRunner {
	if clk == nil {
		clk = SystemClock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	r := &NetworkStackRunner{
		dev:    dev,
		iface:  iface,
		idle:   idle,
		clk:    clk,
		logger: logger,
	}
	dev.RecvEthHandle(func(pkt []byte) error {
		r.rx.Add(1)
		return iface.RecvEth(pkt)
	})
	return r
}

// Stats returns a snapshot of the counters.
func (r *NetworkStackRunner) Stats() RunnerStats {
	return RunnerStats{
		RxFrames:  r.rx.Load(),
		TxFrames:  r.tx.Load(),
		TxDropped: r.dropped.Load(),
	}
}

// Run the packet loop. Returns only when ctx is done.
func (r *NetworkStackRunner) Run(ctx context.Context) error {
	// Maximum number of packets to queue before sending them.
	const (
		queueSize                = 3
		maxRetriesBeforeDropping = 3
	)
	var queue [queueSize][MTU]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int
	markSent := func(i int) {
		lenBuf[i] = 0
		retries[i] = 0
	}
	var ready <-chan struct{}
	if n, ok := r.dev.(readyNotifier); ok {
		ready = n.Ready()
	}
	r.logger.Info("network stack runner started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stallRx := true
		// Poll for incoming packets.
		gotPacket, err := r.dev.PollOne()
		if err != nil {
			r.logger.Warn("poll error", slog.String("err", err.Error()))
		}
		if gotPacket {
			stallRx = false
		}

		// Queue packets to be sent.
		for i := range queue {
			if retries[i] != 0 {
				continue // Packet currently queued for retransmission.
			}
			n, err := r.iface.HandleEth(queue[i][:])
			if err != nil {
				r.logger.Warn("stack error", slog.Int("n", n), slog.String("err", err.Error()))
				lenBuf[i] = 0
				continue
			}
			lenBuf[i] = n
			if n == 0 {
				break
			}
		}
		stallTx := lenBuf == [queueSize]int{}
		if stallTx {
			if stallRx {
				// Avoid busy waiting when both Rx and Tx stall.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ready:
				case <-r.clk.After(r.idle):
				}
			}
			continue
		}

		// Send queued packets.
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := r.dev.SendEth(queue[i][:n]); err != nil {
				// Queue packet for retransmission.
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					r.dropped.Add(1)
					r.logger.Warn("dropped outgoing packet", slog.String("err", err.Error()))
				}
			} else {
				markSent(i)
				r.tx.Add(1)
			}
		}
	}
}
