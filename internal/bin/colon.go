// Package bin provides the per-user namespace layer: key escaping, the
// bin-scoped storage view, and the BinStorage factory that stacks the
// replicated client under it.
package bin

import "strings"

// Escape doubles every colon so the "::" separator between bin and subkey
// stays unambiguous.
func Escape(s string) string {
	return strings.ReplaceAll(s, ":", "::")
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return strings.ReplaceAll(s, "::", ":")
}
