package http

import "github.com/fyrsmithlabs/jnicheck/internal/diag"

// CountByCheck counts diagnostics per check code. The map is never nil so
// that an empty result encodes as {}.
func CountByCheck(diags []diag.Diagnostic) map[diag.Check]int {
	counts := make(map[diag.Check]int)
	for _, d := range diags {
		counts[d.Check]++
	}
	return counts
}
