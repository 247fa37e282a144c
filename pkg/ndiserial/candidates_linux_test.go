//go:build linux

package ndiserial

import "testing"

func TestCandidatesDoesNotError(t *testing.T) {
	if _, err := candidates(); err != nil {
		t.Fatalf("candidates: %v", err)
	}
}
