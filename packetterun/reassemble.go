package packetterun

import (
	"fmt"

	"github.com/kcroker/packette/packette"
)

// Get loads event eventNum, reassembling it from its backing file if it
// is not already in the event cache. A cache hit returns immediately
// without touching the backing file.
func (r *Run) Get(eventNum uint32) (*Event, error) {
	if event, ok := r.cache.get(eventNum); ok {
		return event, nil
	}

	entry, ok := r.offsetTable[eventNum]
	if !ok {
		return nil, fmt.Errorf("packetterun: event %d is not indexed", eventNum)
	}

	f := r.files[entry.FileIndex]
	offset := entry.Offset

	var event *Event
	var prevEventNum uint32

	for {
		hdrBuf, n, err := readAt(f.fh, offset, packette.HeaderSize)
		if err != nil {
			return nil, err
		}
		if n < packette.HeaderSize {
			break
		}

		hdr, err := packette.DecodeHeader(hdrBuf)
		if err != nil {
			break
		}

		if event == nil {
			event = newEvent(&hdr, r.boardID)
			prevEventNum = hdr.EventNum
		} else if hdr.EventNum > prevEventNum {
			break
		}

		offset += int64(packette.HeaderSize)

		payloadLen := hdr.PayloadLen()
		if event.HasChannel(hdr.Channel) {
			ch := event.ensureChannel(r.view, hdr.Channel, hdr.TotalSamples, hdr.Drs4Stop)

			if payloadLen > 0 {
				payload, n, err := readAt(f.fh, offset, payloadLen)
				if err != nil {
					return nil, err
				}
				if n < payloadLen {
					// Live growth: the header has arrived but its payload
					// hasn't. Don't mark the event complete; the caller
					// may retry once UpdateIndex observes more data.
					return nil, packette.ErrShortRead
				}

				if int(hdr.RelOffset)+int(hdr.NumSamples) > int(hdr.TotalSamples) {
					r.Log.WithError(&packette.FragmentOverflowError{
						EventNum:     hdr.EventNum,
						Channel:      hdr.Channel,
						RelOffset:    hdr.RelOffset,
						NumSamples:   hdr.NumSamples,
						TotalSamples: hdr.TotalSamples,
					}).Warn("packetterun: dropping overflowing fragment")
				} else {
					ch.writeFragment(hdr.RelOffset, packette.DecodeSamples(payload))
				}
			}
		}

		offset += int64(payloadLen)
	}

	if event == nil {
		return nil, fmt.Errorf("packetterun: event %d has no packets at its indexed offset", eventNum)
	}

	event.rebuildCaches()
	r.cache.insert(event)
	return event, nil
}
