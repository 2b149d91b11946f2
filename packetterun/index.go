package packetterun

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kcroker/packette/packette"
)

// indexFile scans backing file fi forward from its saved "indexed up to"
// cursor, one packet at a time, recording the byte offset of each new
// event's first packet. It stops at the first short read (torn header or
// true EOF) and leaves the cursor at that header's start, so a later call
// resumes exactly there.
//
// A run of consecutive packets sharing the same event_num (the normal
// case: one event's fragments arrive back to back) is treated as a single
// occurrence, checked once against the offset table on its first packet.
//
// Tie-breaking: when an event_num already has an offset table entry
// belonging to a different file, the file earlier in run order keeps the
// entry — later files' packets for that event are not re-indexed, though
// they remain on-wire and are skipped over rather than treated as an
// error. A collision against an entry from the *same* file is an
// EventCollisionError: it indicates the backing file was corrupted or
// rewritten out from under the index, not ordinary multi-port
// deinterleaving.
func (r *Run) indexFile(fi int) (int, error) {
	f := r.files[fi]
	offset := f.indexedUpTo
	prevEventNum := int64(-1)
	// A resumed scan may start in the middle of this file's last indexed
	// event (its remaining fragments arrived after the previous call); that
	// event is the largest event_num this file owns in the offset table.
	for ev, e := range r.offsetTable {
		if e.FileIndex == fi && int64(ev) > prevEventNum {
			prevEventNum = int64(ev)
		}
	}
	newCount := 0

	for {
		hdrBuf, n, err := readAt(f.fh, offset, packette.HeaderSize)
		if err != nil {
			return newCount, err
		}
		if n < packette.HeaderSize {
			break
		}

		hdr, err := packette.DecodeHeader(hdrBuf)
		if err != nil {
			break
		}

		if !r.boardIDSet {
			r.boardID = hdr.BoardID
			r.boardIDSet = true
		} else if r.boardID != hdr.BoardID {
			return newCount, &packette.HeterogeneousBoardError{Expected: r.boardID, Got: hdr.BoardID}
		}

		if int64(hdr.EventNum) != prevEventNum {
			if existing, exists := r.offsetTable[hdr.EventNum]; exists {
				if existing.FileIndex != fi {
					if fi < existing.FileIndex {
						r.offsetTable[hdr.EventNum] = offsetEntry{FileIndex: fi, Offset: offset}
					}
					// else: an earlier file already owns this event; Get
					// reassembles it from that file alone, so this file's
					// packets for it are never read.
				} else {
					return newCount, &packette.EventCollisionError{EventNum: hdr.EventNum}
				}
			} else {
				r.offsetTable[hdr.EventNum] = offsetEntry{FileIndex: fi, Offset: offset}
				r.arrival = insertSorted(r.arrival, hdr.EventNum)
				newCount++
			}
			prevEventNum = int64(hdr.EventNum)
		}

		offset += int64(packette.HeaderSize) + int64(hdr.PayloadLen())
	}

	f.indexedUpTo = offset
	return newCount, nil
}

// UpdateIndex resumes indexing every backing file from its saved cursor.
// It is idempotent when no file has grown since the last call: it then
// returns (0, elapsed, nil) without duplicating any event_num.
func (r *Run) UpdateIndex() (newEvents int, elapsed time.Duration, err error) {
	start := time.Now()

	for fi, f := range r.files {
		if err := f.fh.Sync(); err != nil {
			// Backing files are opened read-only by the parent; Sync is
			// best-effort (it fails on some platforms for read-only
			// descriptors) and is not fatal to indexing.
			r.Log.WithError(err).WithField("file", f.path).Debug("packetterun: sync before reindex failed")
		}

		n, err := r.indexFile(fi)
		if err != nil {
			return newEvents, time.Since(start), err
		}
		newEvents += n
	}

	if newEvents > 0 {
		r.Log.WithFields(logrus.Fields{
			"new_events": newEvents,
			"elapsed":    time.Since(start),
		}).Debug("packetterun: index updated")
	}

	return newEvents, time.Since(start), nil
}
