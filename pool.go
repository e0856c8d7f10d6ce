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
	"sync"
)

// ResourcePool is a fixed arena of slots. Capacity is set at
// construction and never grows; slots are addressed by index.
type ResourcePool[T any] struct {
	mu    sync.Mutex
	limit int
	slots []T
	used  []bool
	inUse int
}

// NewResourcePool reserves requested slots out of a pool of the given
// capacity. Requesting more than capacity fails; it is never truncated.
func NewResourcePool[T any](capacity, requested int) (*ResourcePool[T], error) {
	if capacity < 1 || requested < 1 {
		return nil, fmt.Errorf("%w: capacity %d, requested %d", ErrPoolConfig, capacity, requested)
	}
	if requested > capacity {
		return nil, fmt.Errorf("%w: capacity %d, requested %d", ErrPoolCapacity, capacity, requested)
	}
	return &ResourcePool[T]{
		limit: capacity,
		slots: make([]T, requested),
		used:  make([]bool, requested),
	}, nil
}

// Cap returns the capacity the pool was checked against.
func (p *ResourcePool[T]) Cap() int {
	return p.limit
}

// Len returns the number of reserved slots.
func (p *ResourcePool[T]) Len() int {
	return len(p.slots)
}

// InUse returns the number of acquired slots.
func (p *ResourcePool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Acquire a free slot.
func (p *ResourcePool[T]) Acquire() (int, *T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, u := range p.used {
		if !u {
			p.used[i] = true
			p.inUse++
			return i, &p.slots[i], nil
		}
	}
	return -1, nil, ErrPoolExhausted
}

// Slot returns the slot with index i.
func (p *ResourcePool[T]) Slot(i int) *T {
	return &p.slots[i]
}

// Release slot i. The slot is reset to its zero value.
func (p *ResourcePool[T]) Release(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.used) || !p.used[i] {
		return
	}
	var zero T
	p.slots[i] = zero
	p.used[i] = false
	p.inUse--
}
