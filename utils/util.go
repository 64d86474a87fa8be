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

// Package utils holds small invariant-checking and process helpers shared
// across the builder, transform and emitter stages.
package utils

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// Assert panics with a formatted message when cond is false. Used for IR
// consistency invariants that should never be violated by well-typed input
// (spec.md §7 "IR consistency errors").
func Assert(cond bool, format string, msg ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, msg...))
	}
}

func Unimplement() {
	panic("not implemented yet")
}

func ShouldNotReachHere() {
	panic("should not reach here")
}

// Align16 rounds n up to the smallest multiple of 16 strictly greater than
// n when n is itself already 16-aligned and non-zero, matching the frame
// alignment invariant in spec.md §3.4.
func Align16(n int) int {
	if n == 0 {
		return 0
	}
	aligned := (n + 15) &^ 15
	if aligned <= n {
		aligned += 16
	}
	return aligned
}

func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// ExecuteCmd runs the external assembler/linker on behalf of the driver
// shim, forwarding stdout/stderr verbatim as spec.md §6 requires.
func ExecuteCmd(workDir string, args ...string) (string, string, error) {
	if !CommandExists(args[0]) {
		fmt.Fprintf(os.Stderr, "warning: cannot find %v on PATH\n", args[0])
	}
	cmd := exec.Command(args[0], args[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = workDir

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
