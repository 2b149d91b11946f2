package packetterun

import (
	"bytes"
	"encoding/gob"

	"github.com/kcroker/packette/packette"
)

// persistedFile is the gob-serializable shape of a backingFile: the open
// *os.File is never serialized, only the path and the cursor needed to
// resume indexing after reopening it.
type persistedFile struct {
	Path        string
	IndexedUpTo int64
}

// persistedRun is the gob-serializable shape of a Run. The event cache is
// deliberately not persisted: every cached event is a pure function of its
// backing bytes and the run's view mode, so on restore it is simply empty
// and repopulates itself the first time each event is requested again. A
// live run's capture goroutine is likewise never serialized; restoring a
// persisted run always yields a file-backed, non-live Run.
type persistedRun struct {
	Files       []persistedFile
	BoardID     packette.BoardID
	BoardIDSet  bool
	View        ViewMode
	OffsetTable map[uint32]offsetEntry
	Arrival     []uint32
}

// Serialize snapshots a Run's index state (backing file paths and
// cursors, established board id, view mode, offset table, and arrival
// order) into a gob-encoded byte slice. Open file handles and the event
// cache are not included.
func Serialize(r *Run) ([]byte, error) {
	p := persistedRun{
		BoardID:     r.boardID,
		BoardIDSet:  r.boardIDSet,
		View:        r.view,
		OffsetTable: r.offsetTable,
		Arrival:     r.arrival,
	}
	for _, f := range r.files {
		p.Files = append(p.Files, persistedFile{Path: f.path, IndexedUpTo: f.indexedUpTo})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize restores a Run from a Serialize snapshot: it reopens every
// backing file by its saved path (returning a MissingFileError for the
// first one it can't), restores the offset table, arrival order and
// per-file cursors exactly, then calls UpdateIndex once to pick up
// anything appended to the backing files since the snapshot was taken.
func Deserialize(data []byte) (*Run, error) {
	var p persistedRun
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}

	r := &Run{
		boardID:     p.BoardID,
		boardIDSet:  p.BoardIDSet,
		view:        p.View,
		offsetTable: p.OffsetTable,
		arrival:     p.Arrival,
		cache:       newEventCache(eventCacheCapacity),
		Log:         defaultLog(),
	}
	if r.offsetTable == nil {
		r.offsetTable = make(map[uint32]offsetEntry)
	}

	for _, pf := range p.Files {
		fh, err := openReadOnly(pf.Path)
		if err != nil {
			return nil, &packette.MissingFileError{Path: pf.Path, Err: err}
		}
		r.files = append(r.files, &backingFile{path: pf.Path, fh: fh, indexedUpTo: pf.IndexedUpTo})
	}

	if _, _, err := r.UpdateIndex(); err != nil {
		return nil, err
	}

	return r, nil
}
