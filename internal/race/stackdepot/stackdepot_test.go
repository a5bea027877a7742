package stackdepot

import (
	"strings"
	"testing"
)

//go:noinline
func captureHere(d *Depot) uint64 {
	return d.Capture(0)
}

// TestCapture verifies a stack is stored and retrievable.
func TestCapture(t *testing.T) {
	var d Depot

	hash := captureHere(&d)
	if hash == 0 {
		t.Fatal("Capture returned 0")
	}
	if len(d.Get(hash)) == 0 {
		t.Fatal("Get returned no frames for captured hash")
	}
}

// TestCapture_Deduplicates verifies one call site maps to one hash.
func TestCapture_Deduplicates(t *testing.T) {
	var d Depot

	var hashes []uint64
	for i := 0; i < 3; i++ {
		hashes = append(hashes, captureHere(&d))
	}
	if hashes[0] != hashes[1] || hashes[1] != hashes[2] {
		t.Errorf("same call site produced different hashes: %v", hashes)
	}
}

// TestGet_Unknown verifies missing hashes return nil.
func TestGet_Unknown(t *testing.T) {
	var d Depot
	if d.Get(0) != nil {
		t.Error("Get(0) should be nil")
	}
	if d.Get(12345) != nil {
		t.Error("Get(unknown) should be nil")
	}
}

// TestFormat verifies the formatted stack names the capturing function.
func TestFormat(t *testing.T) {
	var d Depot
	out := d.Format(captureHere(&d))

	if !strings.Contains(out, "stackdepot.captureHere()") {
		t.Errorf("Format missing caller frame:\n%s", out)
	}
	if strings.Contains(out, "runtime.Callers") {
		t.Errorf("Format kept a runtime frame:\n%s", out)
	}
}

// TestFormatPCs_Empty verifies the placeholder for empty stacks.
func TestFormatPCs_Empty(t *testing.T) {
	if got := FormatPCs(nil); !strings.Contains(got, "no stack trace") {
		t.Errorf("FormatPCs(nil) = %q", got)
	}
}
