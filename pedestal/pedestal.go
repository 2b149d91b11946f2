// Package pedestal computes per-channel, per-capacitor baseline
// calibration (mean and standard deviation) from a set of packette
// backing files, the way a board's zero-signal pedestal run is reduced
// before raw ADC counts from later runs can be corrected against it.
package pedestal

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/kcroker/packette/packette"
	"github.com/kcroker/packette/packetterun"
)

// partial is one file's accumulated sums, sums of squares, and counts,
// per channel, over the 1024 capacitors. It mirrors the per-process
// accumulator dict that a pooled worker hands back in the original
// tooling.
type partial struct {
	sums       map[uint16][]float64
	sumSquares map[uint16][]float64
	counts     map[uint16][]int
}

func newPartial() *partial {
	return &partial{
		sums:       make(map[uint16][]float64),
		sumSquares: make(map[uint16][]float64),
		counts:     make(map[uint16][]int),
	}
}

func (p *partial) ensureChannel(ch uint16) {
	if _, ok := p.sums[ch]; ok {
		return
	}
	p.sums[ch] = make([]float64, packette.SCALength)
	p.sumSquares[ch] = make([]float64, packette.SCALength)
	p.counts[ch] = make([]int, packette.SCALength)
}

// accumulate opens one backing file in SCA view and folds every valid
// sample of every channel into p.
func accumulate(path string) (*partial, error) {
	r, err := packetterun.Open([]string{path}, packetterun.ViewSCA)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := newPartial()

	it := r.Iter()
	for it.Next() {
		event := it.Event()
		for ch, channel := range event.Channels() {
			p.ensureChannel(ch)
			view := channel.CachedView()
			sums, sumSquares, counts := p.sums[ch], p.sumSquares[ch], p.counts[ch]
			for i, sample := range view {
				if !packette.IsValidSample(sample) {
					continue
				}
				v := float64(sample)
				sums[i] += v
				sumSquares[i] += v * v
				counts[i]++
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

// Pedestal is the reduced calibration result: per-channel mean and
// standard deviation over all 1024 capacitors, computed from every valid
// sample seen across every input file.
type Pedestal struct {
	BoardID packette.BoardID
	Mean    map[uint16][]float64
	Stdev   map[uint16][]float64
	Counts  map[uint16][]int
}

// Compute runs one worker per input file concurrently (bounded by
// errgroup's default unlimited-but-GOMAXPROCS-scheduled goroutines, same
// spirit as the original tooling's fixed-size process pool), reduces
// every worker's partial sums elementwise, and derives the final
// mean/stdev per (channel, capacitor) cell. A cell that saw zero
// valid samples across every file keeps mean and stdev at zero and is
// reported back as a ZeroCountError rather than aborting the whole
// computation.
func Compute(ctx context.Context, boardID packette.BoardID, paths []string) (*Pedestal, []error, error) {
	partials := make([]*partial, len(paths))

	g, _ := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			p, err := accumulate(path)
			if err != nil {
				return fmt.Errorf("pedestal: %s: %w", path, err)
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	total := newPartial()
	for _, p := range partials {
		for ch := range p.sums {
			total.ensureChannel(ch)
			for i, v := range p.sums[ch] {
				total.sums[ch][i] += v
			}
			for i, v := range p.sumSquares[ch] {
				total.sumSquares[ch][i] += v
			}
			for i, c := range p.counts[ch] {
				total.counts[ch][i] += c
			}
		}
	}

	result := &Pedestal{
		BoardID: boardID,
		Mean:    make(map[uint16][]float64),
		Stdev:   make(map[uint16][]float64),
		Counts:  total.counts,
	}

	var warnings []error
	for ch, sums := range total.sums {
		mean := make([]float64, packette.SCALength)
		stdev := make([]float64, packette.SCALength)
		sumSquares := total.sumSquares[ch]
		counts := total.counts[ch]

		for i := range mean {
			if counts[i] == 0 {
				warnings = append(warnings, &packette.ZeroCountError{Channel: ch, Capacitor: i})
				continue
			}
			n := float64(counts[i])
			mean[i] = math.Floor(sums[i] / n)
			variance := sumSquares[i]/n - mean[i]*mean[i]
			if variance > 0 {
				stdev[i] = math.Sqrt(variance)
			}
		}

		result.Mean[ch] = mean
		result.Stdev[ch] = stdev
	}

	return result, warnings, nil
}

// persistedPedestal is the gob-serializable shape written to a
// "<board id>.pedestal" artifact.
type persistedPedestal struct {
	BoardID packette.BoardID
	Mean    map[uint16][]float64
	Stdev   map[uint16][]float64
	Counts  map[uint16][]int
}

// WriteFile writes p to path as a gob-encoded pedestal artifact.
func WriteFile(path string, p *Pedestal) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(&persistedPedestal{
		BoardID: p.BoardID,
		Mean:    p.Mean,
		Stdev:   p.Stdev,
		Counts:  p.Counts,
	})
}

// ReadFile reads a pedestal artifact previously written by WriteFile.
func ReadFile(path string) (*Pedestal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pp persistedPedestal
	if err := gob.NewDecoder(f).Decode(&pp); err != nil {
		return nil, err
	}

	return &Pedestal{
		BoardID: pp.BoardID,
		Mean:    pp.Mean,
		Stdev:   pp.Stdev,
		Counts:  pp.Counts,
	}, nil
}
