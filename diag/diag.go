// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package diag implements the lowering-error accumulation and propagation
// policy of spec.md §7: the builder collects every diagnostic it raises and
// returns a single sentinel error after the first failure, rather than
// recovering and continuing.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Severity classifies a diagnostic. Only Error actually stops lowering
// (spec.md §7 "the first failure stops code generation"); Warning exists
// for forward compatibility with front-end-relayed notices but nothing in
// the core raises one today.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Diagnostic is one reported problem, carrying the source line the
// front-end attached to the offending AST node. The core never invents a
// line number of its own — localization is the front-end's job (spec.md
// §1, §7).
type Diagnostic struct {
	Severity Severity
	Line     int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// ErrLoweringFailed is the sentinel spec.md §7 calls for: "the first
// failure returns a sentinel error after emitting all diagnostics collected
// so far". Callers use errors.Is to detect it; Manager.Err() wraps it with
// the collected diagnostics via github.com/pkg/errors so %+v printing also
// carries the stack trace recorded at the Err() call.
var ErrLoweringFailed = errors.New("lowering failed")

// Manager accumulates diagnostics for one translation unit (spec.md §7
// "Propagation policy"). It is not safe for concurrent use; the core is
// single-threaded (spec.md §5).
type Manager struct {
	diags  []Diagnostic
	failed bool
}

func NewManager() *Manager {
	return &Manager{}
}

// Report records a diagnostic. Error severity marks the manager failed;
// builder.Build stops lowering after the statement that raised it and
// returns Err() without lowering the remaining functions.
func (m *Manager) Report(sev Severity, line int, format string, args ...interface{}) {
	m.diags = append(m.diags, Diagnostic{Severity: sev, Line: line, Message: fmt.Sprintf(format, args...)})
	if sev == Error {
		m.failed = true
	}
}

func (m *Manager) Failed() bool { return m.failed }

func (m *Manager) Diagnostics() []Diagnostic { return m.diags }

// Err returns the sentinel error carrying every collected diagnostic, or
// nil if nothing failed.
func (m *Manager) Err() error {
	if !m.failed {
		return nil
	}
	errs := lo.Filter(m.diags, func(d Diagnostic, _ int) bool { return d.Severity == Error })
	msg := strings.Join(lo.Map(errs, func(d Diagnostic, _ int) string { return d.String() }), "; ")
	return errors.Wrap(ErrLoweringFailed, msg)
}
