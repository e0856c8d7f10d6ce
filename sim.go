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
	"bytes"
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"
)

// SimConfig scripts the behavior of a simulated radio.
type SimConfig struct {
	MAC             [6]byte
	AccessPoints    []AccessPoint // scan result
	ScanErr         error         // scan fails with this error
	StartErr        error         // start fails with this error
	ConnectFailures int           // number of failing connect calls
	KeepStarted     bool          // radio stays started after a disconnect
	NoBLE           bool          // BLE transport unavailable
	LeaseAfter      int           // stack polls after association until DHCP binds
	Lease           NetworkLease  // lease handed out by the simulated network
}

// SimCall is a recorded driver call.
type SimCall struct {
	Op string
	At time.Time
}

// SimRadio is a simulated radio for hosts without the real silicon. It
// implements the wifi controller, the net device and the BLE transport.
type SimRadio struct {
	mu         sync.Mutex
	cfg        SimConfig
	clk        Clock
	cred       StationCredentials
	configured bool
	started    bool
	connected  bool
	connects   int
	calls      []SimCall
	events     map[Event]chan struct{}
	ready      chan struct{}
	rxq        [][]byte
	sent       [][]byte
	handler    func([]byte) error
	hci        *simHCI
	net        *SimNetwork
}

// NewSimRadio creates a simulated radio.
func NewSimRadio(cfg SimConfig, clk Clock) *SimRadio {
	if clk == nil {
		clk = SystemClock{}
	}
	r := &SimRadio{
		cfg: cfg,
		clk: clk,
		events: map[Event]chan struct{}{
			EventStaConnected:    make(chan struct{}, 1),
			EventStaDisconnected: make(chan struct{}, 1),
		},
		ready: make(chan struct{}, 1),
		hci:   new(simHCI),
	}
	r.net = &SimNetwork{radio: r}
	return r
}

// Wifi returns the station controller and net device.
func (r *SimRadio) Wifi() (WifiController, NetDevice) {
	return r, r
}

// BLE returns the HCI transport.
func (r *SimRadio) BLE() (HCITransport, error) {
	if r.cfg.NoBLE {
		return nil, errors.New("no bluetooth firmware")
	}
	return r.hci, nil
}

// Network returns the simulated network stack.
func (r *SimRadio) Network() *SimNetwork {
	return r.net
}

// HCI returns the bytes written to the BLE transport.
func (r *SimRadio) HCI() []byte {
	r.hci.mu.Lock()
	defer r.hci.mu.Unlock()
	return bytes.Clone(r.hci.tx.Bytes())
}

// Calls returns the recorded driver calls.
func (r *SimRadio) Calls() []SimCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SimCall(nil), r.calls...)
}

// Credentials returns the configured credentials.
func (r *SimRadio) Credentials() (StationCredentials, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cred, r.configured
}

// Disconnect drops the association as if the access point went away.
func (r *SimRadio) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return
	}
	r.connected = false
	if !r.cfg.KeepStarted {
		r.started = false
	}
	r.record("disconnect")
	r.signal(EventStaDisconnected)
}

// InjectFrame queues a received frame.
func (r *SimRadio) InjectFrame(frame []byte) {
	r.mu.Lock()
	r.rxq = append(r.rxq, bytes.Clone(frame))
	r.mu.Unlock()
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

// Sent returns the frames transmitted so far.
func (r *SimRadio) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.sent...)
}

// record a call; r.mu held.
func (r *SimRadio) record(op string) {
	r.calls = append(r.calls, SimCall{Op: op, At: r.clk.Now()})
}

// signal an event; r.mu held.
func (r *SimRadio) signal(ev Event) {
	select {
	case r.events[ev] <- struct{}{}:
	default:
	}
}

// drain a pending event; r.mu held.
func (r *SimRadio) drain(ev Event) {
	select {
	case <-r.events[ev]:
	default:
	}
}

// Capabilities of the simulated device.
func (r *SimRadio) Capabilities() string {
	if r.cfg.NoBLE {
		return "station"
	}
	return "station,ble"
}

// SetConfig stores the station credentials.
func (r *SimRadio) SetConfig(cred StationCredentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("config")
	r.cred = cred
	r.configured = true
	return nil
}

// IsStarted reports whether the radio was started.
func (r *SimRadio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

// Start the radio.
func (r *SimRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("start")
	if r.cfg.StartErr != nil {
		return r.cfg.StartErr
	}
	if !r.configured {
		return errors.New("radio not configured")
	}
	r.started = true
	return nil
}

// Scan returns the scripted access points.
func (r *SimRadio) Scan(ctx context.Context, cfg ScanConfig) ([]AccessPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("scan")
	if r.cfg.ScanErr != nil {
		return nil, r.cfg.ScanErr
	}
	var aps []AccessPoint
	for _, ap := range r.cfg.AccessPoints {
		if ap.Hidden && !cfg.ShowHidden {
			continue
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

// Connect associates with the configured network. The first
// ConnectFailures calls fail.
func (r *SimRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("connect")
	r.connects++
	if !r.started {
		return errors.New("radio not started")
	}
	if r.connects <= r.cfg.ConnectFailures {
		return errors.New("association rejected")
	}
	r.connected = true
	r.drain(EventStaDisconnected)
	r.signal(EventStaConnected)
	return nil
}

// IsConnected reports the association state.
func (r *SimRadio) IsConnected() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, nil
}

// WaitForEvent blocks until ev occurs or ctx is done.
func (r *SimRadio) WaitForEvent(ctx context.Context, ev Event) error {
	ch, ok := r.events[ev]
	if !ok {
		return ErrUnknownEvent
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// HardwareAddr6 returns the MAC address.
func (r *SimRadio) HardwareAddr6() ([6]byte, error) {
	return r.cfg.MAC, nil
}

// PollOne delivers one queued frame to the receive handler.
func (r *SimRadio) PollOne() (bool, error) {
	r.mu.Lock()
	if len(r.rxq) == 0 || r.handler == nil {
		r.mu.Unlock()
		return false, nil
	}
	frame := r.rxq[0]
	r.rxq = r.rxq[1:]
	h := r.handler
	r.mu.Unlock()
	return true, h(frame)
}

// SendEth transmits a frame.
func (r *SimRadio) SendEth(pkt []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return errors.New("not associated")
	}
	r.sent = append(r.sent, bytes.Clone(pkt))
	return nil
}

// RecvEthHandle sets the receive handler.
func (r *SimRadio) RecvEthHandle(handler func(pkt []byte) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Ready signals queued receive frames.
func (r *SimRadio) Ready() <-chan struct{} {
	return r.ready
}

//----------------------------------------------------------------------

// SimNetwork is a network stack on top of a simulated radio. DHCP binds
// LeaseAfter polls after the association came up.
type SimNetwork struct {
	mu    sync.Mutex
	radio *SimRadio
	polls int
	lease *NetworkLease
	rx    int
}

// RecvEth counts a received frame.
func (n *SimNetwork) RecvEth(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rx++
	return nil
}

// HandleEth advances the simulated DHCP exchange. It never emits frames.
func (n *SimNetwork) HandleEth(dst []byte) (int, error) {
	up := n.IsLinkUp()
	n.mu.Lock()
	defer n.mu.Unlock()
	if !up {
		n.polls = 0
		n.lease = nil
		return 0, nil
	}
	if n.lease != nil {
		return 0, nil
	}
	if n.polls++; n.polls > n.radio.cfg.LeaseAfter {
		l := n.radio.cfg.Lease
		if !l.Addr.IsValid() {
			l.Addr = netip.AddrFrom4([4]byte{192, 168, 1, 42})
			l.CIDRBits = 24
			l.Gateway = netip.AddrFrom4([4]byte{192, 168, 1, 1})
			l.LeaseTime = time.Hour
		}
		l.Acquired = n.radio.clk.Now()
		n.lease = &l
	}
	return 0, nil
}

// IsLinkUp reports the association state of the radio.
func (n *SimNetwork) IsLinkUp() bool {
	up, _ := n.radio.IsConnected()
	return up
}

// ConfigV4 returns the lease while the link is up.
func (n *SimNetwork) ConfigV4() (NetworkLease, bool) {
	up := n.IsLinkUp()
	n.mu.Lock()
	defer n.mu.Unlock()
	if !up || n.lease == nil {
		return NetworkLease{}, false
	}
	return *n.lease, true
}

//----------------------------------------------------------------------

// simHCI is a loopback HCI transport.
type simHCI struct {
	mu sync.Mutex
	tx bytes.Buffer // written by the host
	rx bytes.Buffer // to be read by the host
}

func (h *simHCI) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx.Write(p)
}

func (h *simHCI) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx.Read(p)
}

func (h *simHCI) Buffered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rx.Len()
}
