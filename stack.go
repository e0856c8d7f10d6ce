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
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

// NetworkLease is the IP configuration granted by DHCP.
type NetworkLease struct {
	Addr      netip.Addr
	CIDRBits  int
	Gateway   netip.Addr
	DNS       []netip.Addr
	LeaseTime time.Duration
	Acquired  time.Time
}

// String returns a human-readable lease.
func (l NetworkLease) String() string {
	var dns []string
	for _, a := range l.DNS {
		dns = append(dns, a.String())
	}
	return fmt.Sprintf("%s/%d gw=%s dns=[%s] lease=%s", l.Addr, l.CIDRBits, l.Gateway, strings.Join(dns, ","), l.LeaseTime)
}

// NetSocket is a socket slot of the network stack.
type NetSocket struct {
	Proto string
}

// StackConfig for a new network stack.
type StackConfig struct {
	MAC       [6]byte
	Resources NetResources
	Hostname  string
	Link      func() bool // data link state of the device
	Clock     Clock
	Logger    *slog.Logger
}

// Stack is the TCP/IP stack of the station interface. It implements
// Interface for the runner and LinkStatus for the readiness gate.
type Stack struct {
	ps       *stacks.PortStack
	sockets  *ResourcePool[NetSocket]
	link     func() bool
	hostname string
	clk      Clock
	logger   *slog.Logger

	mu        sync.Mutex
	dhcp      *stacks.DHCPClient // DHCP client of the stack (nil: not created yet)
	requested bool               // DHCP exchange running on the current link
	retryAt   time.Time          // earliest time for the next request
	lease     *NetworkLease      // lease bound on the current link
	wasUp     bool               // link state seen last
	issued    uint32             // DHCP transactions started
}

// Wait before a failed DHCP request is issued again.
const dhcpRetry = time.Second

// NewStack creates the network stack. Socket slots are reserved from a
// pool of NetSocketsMax; asking for more fails.
func NewStack(cfg StackConfig) (*Stack, error) {
	pool, err := NewResourcePool[NetSocket](NetSocketsMax, cfg.Resources.sockets())
	if err != nil {
		return nil, fatal("network resources", err)
	}
	// reserve the slots up front: DHCP first
	for i := 0; i < pool.Len(); i++ {
		_, s, _ := pool.Acquire()
		switch {
		case i == 0:
			s.Proto = "dhcp"
		case i <= cfg.Resources.UDPPorts:
			s.Proto = "udp"
		default:
			s.Proto = "tcp"
		}
	}
	s := &Stack{
		sockets:  pool,
		link:     cfg.Link,
		hostname: cfg.Hostname,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
	}
	if s.link == nil {
		s.link = func() bool { return false }
	}
	if s.clk == nil {
		s.clk = SystemClock{}
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	s.ps = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             cfg.MAC,
		MaxOpenPortsUDP: cfg.Resources.UDPPorts + 1,
		MaxOpenPortsTCP: cfg.Resources.TCPPorts,
		MTU:             MTU,
		Logger:          s.logger,
	})
	return s, nil
}

// PortStack returns the underlying seqs stack.
func (s *Stack) PortStack() *stacks.PortStack {
	return s.ps
}

// Sockets returns the socket slot pool.
func (s *Stack) Sockets() *ResourcePool[NetSocket] {
	return s.sockets
}

// RecvEth feeds a received frame into the stack.
func (s *Stack) RecvEth(frame []byte) error {
	return s.ps.RecvEth(frame)
}

// HandleEth advances DHCP and writes the next outgoing frame to dst.
func (s *Stack) HandleEth(dst []byte) (int, error) {
	s.maintain()
	return s.ps.HandleEth(dst)
}

// IsLinkUp reports the data link state.
func (s *Stack) IsLinkUp() bool {
	return s.link()
}

// ConfigV4 returns the lease bound on the current link.
func (s *Stack) ConfigV4() (NetworkLease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease == nil || !s.link() {
		return NetworkLease{}, false
	}
	return *s.lease, true
}

// requesting reports whether a DHCP exchange runs on the current link.
func (s *Stack) requesting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// maintain the DHCP exchange for the current link. The client is
// aborted on link loss; the stack releases its port while the runner
// keeps draining it, and the next link-up restarts the same client.
func (s *Stack) maintain() {
	up := s.link()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !up {
		if s.wasUp {
			s.logger.Info("link down, dropping lease")
			s.lease = nil
			if s.dhcp != nil && s.requested {
				s.dhcp.Abort()
			}
			s.requested = false
			s.retryAt = time.Time{}
		}
		s.wasUp = false
		return
	}
	s.wasUp = true
	if !s.requested {
		now := s.clk.Now()
		if now.Before(s.retryAt) {
			return
		}
		if s.dhcp == nil {
			s.dhcp = stacks.NewDHCPClient(s.ps, dhcp.DefaultClientPort)
		}
		s.issued++
		err := s.dhcp.BeginRequest(stacks.DHCPRequestConfig{
			Xid:      uint32(now.Nanosecond()) ^ s.issued | 1,
			Hostname: s.hostname,
		})
		if err != nil {
			s.retryAt = now.Add(dhcpRetry)
			s.logger.Warn("DHCP request failed", slog.String("err", err.Error()), slog.Duration("retry", dhcpRetry))
			return
		}
		s.logger.Info("DHCP ongoing...")
		s.requested = true
		return
	}
	if s.lease != nil || s.dhcp.State() != dhcp.StateBound {
		return
	}
	lease := &NetworkLease{
		Addr:      s.dhcp.Offer(),
		CIDRBits:  int(s.dhcp.CIDRBits()),
		Gateway:   s.dhcp.Gateway(),
		DNS:       s.dhcp.DNSServers(),
		LeaseTime: s.dhcp.IPLeaseTime(),
		Acquired:  s.clk.Now(),
	}
	// It's important to set the IP address after DHCP completes.
	s.ps.SetAddr(lease.Addr)
	s.lease = lease
	s.logger.Info("DHCP complete", slog.String("lease", lease.String()))
}

// NewStationStack creates the stack of a wifi capability. The link is
// up while the controller reports an association.
func NewStationStack(wifi *WifiCapability, cfg *Config, logger *slog.Logger) (*Stack, error) {
	mac, err := wifi.Device.HardwareAddr6()
	if err != nil {
		return nil, fatal("hardware address", err)
	}
	ctrl := wifi.Controller
	return NewStack(StackConfig{
		MAC:       mac,
		Resources: cfg.Net,
		Hostname:  cfg.Hostname,
		Link: func() bool {
			ok, err := ctrl.IsConnected()
			return err == nil && ok
		},
		Logger: logger,
	})
}
