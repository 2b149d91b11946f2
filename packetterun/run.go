// Package packetterun reconstructs a packette run — an ordered set of
// append-only backing files, or a live UDP endpoint being captured to one —
// into a seekable, randomly indexable sequence of fully-reassembled
// events. It owns the incremental on-disk index, the bounded event cache,
// and the dual-view (time-ordered vs. capacitor-ordered) channel
// reconstructor described by the packette protocol in package packette.
package packetterun

import (
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kcroker/packette/packette"
)

// backingFile is one append-only file contributing packets for exactly
// one board id. Files are opened read-only; they are assumed to only ever
// grow, written elsewhere (by an external process or by this run's own
// live-capture goroutine).
type backingFile struct {
	path        string
	fh          *os.File
	indexedUpTo int64
}

// offsetEntry is the (file, byte offset) of an event's first packet.
// Fields are exported so the entry survives a gob round trip unchanged.
type offsetEntry struct {
	FileIndex int
	Offset    int64
}

// Run is the complete collection of packets from one board, possibly
// split across files and time. It is not safe for concurrent use from
// multiple goroutines without an external mutex — it owns no internal
// lock, matching the rest of the core engine's single-threaded,
// cooperative design.
type Run struct {
	files []*backingFile

	boardID    packette.BoardID
	boardIDSet bool

	view ViewMode

	offsetTable map[uint32]offsetEntry
	arrival     []uint32

	cache *eventCache

	capture *liveCapture

	Log *logrus.Logger
}

// Open opens a run backed by the given ordered list of file paths. File
// order defines deinterleaving when multiple capture ports feed the same
// board: see the index builder's tie-breaking policy in index.go.
func Open(paths []string, view ViewMode) (*Run, error) {
	r := &Run{
		view:        view,
		offsetTable: make(map[uint32]offsetEntry),
		cache:       newEventCache(eventCacheCapacity),
		Log:         logrus.StandardLogger(),
	}

	for _, p := range paths {
		fh, err := os.Open(p)
		if err != nil {
			return nil, &packette.MissingFileError{Path: p, Err: err}
		}
		r.files = append(r.files, &backingFile{path: p, fh: fh})
	}

	for fi := range r.files {
		n, err := r.indexFile(fi)
		if err != nil {
			return nil, err
		}
		r.Log.WithFields(logrus.Fields{
			"file":   r.files[fi].path,
			"events": n,
		}).Debug("packetterun: built initial event index")
	}

	return r, nil
}

// Len returns the number of indexed events.
func (r *Run) Len() int {
	return len(r.offsetTable)
}

// BoardID returns the run's established board id. It is the zero value
// until the first packet has been indexed.
func (r *Run) BoardID() packette.BoardID {
	return r.boardID
}

// View returns the run's current coordinate system.
func (r *Run) View() ViewMode {
	return r.view
}

// ArrivalOrder returns the indexed event numbers in ascending numerical
// order: the index builder keeps its arrival list sorted as it inserts.
func (r *Run) ArrivalOrder() []uint32 {
	out := make([]uint32, len(r.arrival))
	copy(out, r.arrival)
	return out
}

// SetView switches the run's global coordinate system. Every cached
// event's channels have their masks remapped into the new coordinate
// system and their cached views rebuilt in place; the cache itself is not
// purged. Events loaded afterward automatically pick up the new mode.
func (r *Run) SetView(view ViewMode) {
	if view == r.view {
		return
	}
	r.view = view
	r.cache.forEach(func(e *Event) {
		e.switchView(view)
	})
}

// Close closes every backing file handle and, if this run was opened
// against a live endpoint, stops the capture goroutine.
func (r *Run) Close() error {
	if r.capture != nil {
		r.capture.stop()
	}
	var first error
	for _, f := range r.files {
		if err := f.fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CaptureErr returns the error, if any, that caused this run's live
// capture goroutine to exit. It is nil for file-backed runs and for live
// runs whose capture goroutine is still running.
func (r *Run) CaptureErr() error {
	if r.capture == nil {
		return nil
	}
	return r.capture.getErr()
}

// Iterator walks a Run's events in ascending event-number order.
type Iterator struct {
	run   *Run
	idx   int
	event *Event
	err   error
}

// Iter returns an iterator over this run's events in ascending
// event-number order (the order of ArrivalOrder).
//
//	it := run.Iter()
//	for it.Next() {
//	    event := it.Event()
//	}
//	if err := it.Err(); err != nil { ... }
func (r *Run) Iter() *Iterator {
	return &Iterator{run: r}
}

// Next advances the iterator. It returns false at the end of the arrival
// list or on the first error encountered loading an event.
func (it *Iterator) Next() bool {
	if it.err != nil || it.idx >= len(it.run.arrival) {
		return false
	}
	eventNum := it.run.arrival[it.idx]
	it.idx++
	event, err := it.run.Get(eventNum)
	if err != nil {
		it.err = err
		return false
	}
	it.event = event
	return true
}

// Event returns the event most recently fetched by Next.
func (it *Iterator) Event() *Event {
	return it.event
}

// Err returns the first error encountered by the iterator, if any.
func (it *Iterator) Err() error {
	return it.err
}

func defaultLog() *logrus.Logger {
	return logrus.StandardLogger()
}

func openReadOnly(path string) (*os.File, error) {
	return os.Open(path)
}

func insertSorted(list []uint32, v uint32) []uint32 {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

// readAt performs a positional read of exactly n bytes from fh at offset.
// A short read (fewer than n bytes available) is legal: it signals the
// requested region hasn't arrived yet and is reported back to the caller
// as the number of bytes actually read.
func readAt(fh *os.File, offset int64, n int) ([]byte, int, error) {
	buf := make([]byte, n)
	if _, err := fh.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, err
	}
	read, err := io.ReadFull(fh, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf, read, err
}
