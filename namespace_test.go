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
	"sort"
	"testing"

	qt "github.com/frankban/quicktest"
)

// build a test namespace
func newNamespace() (ns *Namespace, err error) {
	ns = NewNamespace("sys", "sys")
	if err = ns.NewFile("/readme", 0444, NewTextFile("Just a test...\n")); err != nil {
		return
	}
	if err = ns.NewDir("/sensors", 0777); err != nil {
		return
	}
	n := 0
	err = ns.NewFile("/sensors/count", 0444, NewFuncFile(
		func() ([]byte, error) {
			n++
			return []byte(fmt.Sprintf("%d\n", n)), nil
		},
	))
	return
}

func TestNamespaceNew(t *testing.T) {
	c := qt.New(t)
	ns, err := newNamespace()
	c.Assert(err, qt.IsNil)

	root := ns.Root()
	c.Assert(root.IsDir(), qt.IsTrue)
	c.Assert(root.Name(), qt.Equals, "/")
	var names []string
	for name := range root.children {
		names = append(names, name)
	}
	sort.Strings(names)
	c.Assert(names, qt.DeepEquals, []string{"readme", "sensors"})

	e, err := ns.Get("/readme")
	c.Assert(err, qt.IsNil)
	c.Assert(e.IsDir(), qt.IsFalse)
	data, err := e.file.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "Just a test...\n")
	c.Assert(e.file.Write([]byte("x")), qt.ErrorIs, errReadOnly)

	e, err = ns.Get("/sensors/count")
	c.Assert(err, qt.IsNil)
	data, _ = e.file.Read()
	c.Assert(string(data), qt.Equals, "1\n")
	data, _ = e.file.Read()
	c.Assert(string(data), qt.Equals, "2\n")
}

func TestNamespaceErrors(t *testing.T) {
	c := qt.New(t)
	ns, err := newNamespace()
	c.Assert(err, qt.IsNil)

	_, err = ns.Get("readme")
	c.Check(err, qt.ErrorIs, errNoAbs)
	_, err = ns.Get("/missing")
	c.Check(err, qt.ErrorIs, errNoFile)
	_, err = ns.Get("/readme/below")
	c.Check(err, qt.ErrorIs, errNoDir)

	c.Check(ns.NewDir("/sensors", 0555), qt.ErrorIs, errExists)
	c.Check(ns.NewDir("/readme/sub", 0555), qt.ErrorIs, errNoDir)
	c.Check(ns.NewDir("/missing/sub", 0555), qt.ErrorIs, errNoFile)
	c.Check(ns.NewFile("/nil", 0444, nil), qt.ErrorIs, errNoFile)
}

func TestNamespaceIdentifiers(t *testing.T) {
	c := qt.New(t)
	a, _ := newNamespace()
	b, _ := newNamespace()
	// identifiers are per namespace
	ea, _ := a.Get("/sensors/count")
	eb, _ := b.Get("/sensors/count")
	c.Assert(ea.ref.Path, qt.Equals, eb.ref.Path)
	c.Assert(a.dict, qt.HasLen, 4)
	c.Assert(a.Walk(&a.Root().ref.Qid, "sensors"), qt.Not(qt.IsNil))
	c.Assert(a.Walk(&a.Root().ref.Qid, "nothing"), qt.IsNil)
	c.Assert(a.Walk(&ea.ref.Qid, "x"), qt.IsNil)
}
