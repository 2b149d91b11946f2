package pedestal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kcroker/packette/packette"
)

var testBoardID = packette.BoardID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

// constFile writes a single-event, single-channel packette file whose
// every sample is value, at the given drs4_stop, and returns its path.
func constFile(t *testing.T, dir, name string, eventNum uint32, drs4Stop uint16, value int16) string {
	t.Helper()
	samples := make([]int16, packette.SCALength)
	for i := range samples {
		samples[i] = value
	}

	h := packette.Header{
		BoardID:      testBoardID,
		SeqNum:       uint64(eventNum),
		EventNum:     eventNum,
		ChannelMask:  1 << 0,
		NumSamples:   uint16(len(samples)),
		Channel:      0,
		TotalSamples: uint16(len(samples)),
		Drs4Stop:     drs4Stop,
	}
	buf := append(h.Encode(), packette.EncodeSamples(samples)...)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestComputeConstantPedestal(t *testing.T) {
	dir := t.TempDir()
	const value int16 = 256 // low 4 bits clear: a valid sample
	const stop uint16 = 500

	paths := []string{
		constFile(t, dir, "a.dat", 1, stop, value),
		constFile(t, dir, "b.dat", 2, stop, value),
	}

	result, warnings, err := Compute(context.Background(), testBoardID, paths)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// Capacitors within [stop-15, stop+15) are masked by default on every
	// file and never counted.
	maskedLow, maskedHigh := int(stop)-15, int(stop)+15

	if got, want := len(warnings), maskedHigh-maskedLow; got != want {
		t.Fatalf("len(warnings) = %d, want %d (one ZeroCountError per masked capacitor)", got, want)
	}

	mean, stdev, counts := result.Mean[0], result.Stdev[0], result.Counts[0]
	if mean == nil {
		t.Fatalf("channel 0 missing from result")
	}

	for i := 0; i < packette.SCALength; i++ {
		if i >= maskedLow && i < maskedHigh {
			if counts[i] != 0 {
				t.Errorf("capacitor %d: counts = %d, want 0 (masked)", i, counts[i])
			}
			continue
		}
		if counts[i] != 2 {
			t.Errorf("capacitor %d: counts = %d, want 2", i, counts[i])
		}
		if mean[i] != float64(value) {
			t.Errorf("capacitor %d: mean = %v, want %v", i, mean[i], value)
		}
		if stdev[i] != 0 {
			t.Errorf("capacitor %d: stdev = %v, want 0", i, stdev[i])
		}
	}
}

func TestComputeMissingFile(t *testing.T) {
	_, _, err := Compute(context.Background(), testBoardID, []string{"/nonexistent/pedestal/run.dat"})
	if err == nil {
		t.Fatalf("Compute should fail for a nonexistent file")
	}
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := []string{constFile(t, dir, "a.dat", 1, 500, 256)}

	result, _, err := Compute(context.Background(), testBoardID, paths)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	out := filepath.Join(dir, "board.pedestal")
	if err := WriteFile(out, result); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.BoardID != result.BoardID {
		t.Fatalf("BoardID = %v, want %v", got.BoardID, result.BoardID)
	}
	if len(got.Mean[0]) != packette.SCALength {
		t.Fatalf("restored Mean[0] has length %d, want %d", len(got.Mean[0]), packette.SCALength)
	}
}
