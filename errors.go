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
	"errors"
	"fmt"
)

// Error messages
var (
	ErrNoSSID           = errors.New("no network name configured")
	ErrRadioTaken       = errors.New("radio capability already handed out")
	ErrRadioBusy        = errors.New("radio still driven by wifi bring-up")
	ErrRadioUnavailable = errors.New("radio transport unavailable")
	ErrPoolConfig       = errors.New("invalid pool configuration")
	ErrPoolCapacity     = errors.New("pool request exceeds capacity")
	ErrPoolExhausted    = errors.New("all pool slots in use")
	ErrScanUnsupported  = errors.New("scan not supported by device")
	ErrInterval         = errors.New("non-positive interval")
	ErrUnknownEvent     = errors.New("unsupported driver event")
)

// ErrorKind separates failures the supervisor recovers from and
// failures that abort startup.
type ErrorKind int

// error kinds
const (
	KindTransient ErrorKind = iota // retried after a cooldown
	KindFatal                      // aborts startup
)

// String returns a human-readable error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure of operation Op.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Kind.String() + " " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// fatal wraps err as an unrecoverable failure of op.
func fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// transient wraps err as a recoverable failure of op.
func transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// IsFatal reports whether err (or any error it wraps) is classified as
// fatal. Unclassified errors are treated as fatal: only failures
// explicitly marked transient are retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindFatal
	}
	return true
}
