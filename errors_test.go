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
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestErrorKinds(t *testing.T) {
	c := qt.New(t)
	c.Assert(IsFatal(nil), qt.IsFalse)
	c.Assert(IsFatal(fatal("wifi start", ErrRadioUnavailable)), qt.IsTrue)
	c.Assert(IsFatal(transient("wifi connect", errors.New("rejected"))), qt.IsFalse)
	c.Assert(IsFatal(errors.New("unclassified")), qt.IsTrue)

	// classification survives wrapping
	err := fmt.Errorf("boot: %w", transient("wifi connect", context.DeadlineExceeded))
	c.Assert(IsFatal(err), qt.IsFalse)
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)

	c.Assert(KindTransient.String(), qt.Equals, "transient")
	c.Assert(KindFatal.String(), qt.Equals, "fatal")
}

func TestErrorMessage(t *testing.T) {
	c := qt.New(t)
	err := fatal("take ble", ErrRadioBusy)
	var e *Error
	c.Assert(errors.As(err, &e), qt.IsTrue)
	c.Assert(e.Op, qt.Equals, "take ble")
	c.Assert(e.Kind, qt.Equals, KindFatal)
	c.Assert(err, qt.ErrorIs, ErrRadioBusy)
}
