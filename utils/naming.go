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
package utils

import "fmt"

// LabelName draws the n-th synthetic control-flow label (spec.md §4.2).
func LabelName(n int) string { return fmt.Sprintf("L%d", n) }

// StrSymbol draws the n-th pooled string-literal symbol (spec.md §4.1
// "Constants and literals", GLOSSARY "Pool symbol").
func StrSymbol(n int) string { return fmt.Sprintf("STR%d", n) }

// FltSymbol draws the n-th pooled float/double-literal symbol.
func FltSymbol(n int) string { return fmt.Sprintf("FLT%d", n) }
