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

// Command ltacc drives the core pipeline end to end: parse (an external
// collaborator, spec.md §1), build, transform, emit, then hand the
// assembly to the platform assembler/linker (spec.md §6 "Driver
// contract"). Lexing/parsing is out of the core's scope; Parse is a
// package variable precisely so a real front-end can be wired in without
// touching this file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ltac/ast"
	"ltac/builder"
	"ltac/emit"
	"ltac/target"
	"ltac/transform"
	"ltac/utils"
)

// Parse turns a source path into a type-checked AstTree. The core ships no
// lexer/parser (spec.md §1); a real front-end replaces it by assigning
// Parse from an init() in another file of this package.
var Parse = func(path string) (*ast.AstTree, error) {
	return nil, errors.Errorf("no front-end wired: cannot parse %s", path)
}

func main() {
	flags := target.Flags{}
	var archName, outDir string
	var assemble bool

	root := &cobra.Command{
		Use:   "ltacc [source]",
		Short: "Lower a type-checked AST to native assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, ok := target.ParseArch(archName)
			if !ok {
				return errors.Errorf("unknown architecture %q", archName)
			}
			flags.Arch = arch
			return run(args[0], outDir, flags, assemble)
		},
	}

	root.Flags().StringVar(&archName, "arch", "x86_64", "target architecture: x86_64, aarch64, riscv64")
	root.Flags().BoolVar(&flags.UseLibc, "use-libc", true, "lower exit/malloc/free to libc calls instead of raw syscalls")
	root.Flags().BoolVar(&flags.IsPIC, "pic", false, "emit position-independent code annotations")
	root.Flags().BoolVar(&flags.IsLibrary, "library", false, "produce a shared library instead of an executable")
	root.Flags().StringVarP(&outDir, "out", "o", ".", "output directory for the generated .s file")
	root.Flags().BoolVar(&assemble, "assemble", false, "additionally invoke the platform assembler on the generated .s file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(source, outDir string, flags target.Flags, assemble bool) error {
	tree, err := Parse(source)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	file, err := builder.Build(tree, name)
	if err != nil {
		return errors.Wrap(err, "lowering failed")
	}

	file = transform.Run(file, flags)

	var text string
	switch flags.Arch {
	case target.AMD64:
		text = emit.NewAMD64(flags).Emit(file)
	case target.AArch64:
		text = emit.NewARM64(flags).Emit(file)
	case target.RISCV64:
		text = emit.NewRISCV64(flags).Emit(file)
	}

	asmPath := filepath.Join(outDir, name+".s")
	if err := os.WriteFile(asmPath, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "writing assembly output")
	}

	if !assemble {
		return nil
	}
	return assembleAndLink(outDir, name, flags)
}

// assembleAndLink shells out to the platform assembler/linker, surfacing
// their stdout/stderr verbatim (spec.md §6 "Driver contract"). It is a
// thin demonstration of the driver's responsibilities, not a full
// implementation of temp-file management or dynamic-linker path
// resolution — those stay out of the core by design.
func assembleAndLink(dir, name string, flags target.Flags) error {
	objPath := name + ".o"
	stdout, stderr, err := utils.ExecuteCmd(dir, "as", "-o", objPath, name+".s")
	if err != nil {
		fmt.Fprint(os.Stderr, stdout, stderr)
		return errors.Wrap(err, "assembler failed")
	}

	linkArgs := []string{"-o", name, objPath}
	if flags.IsLibrary {
		linkArgs = append(linkArgs, "-shared")
	}
	if flags.UseLibc {
		linkArgs = append(linkArgs, "-lc")
	}
	stdout, stderr, err = utils.ExecuteCmd(dir, "ld", linkArgs...)
	if err != nil {
		fmt.Fprint(os.Stderr, stdout, stderr)
		return errors.Wrap(err, "linker failed")
	}
	return nil
}
