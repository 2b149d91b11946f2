package packetterun

import "github.com/kcroker/packette/packette"

// Event is a group of packets sharing an event_num: the set of channels
// present is fixed at construction from the first packet's channel_mask,
// and never grows afterward (a later fragment whose channel bit is clear
// in that mask is silently ignored, per the reassembler's defensive
// policy).
//
// Channels are stored in a fixed 64-slot array rather than a dynamic map,
// since channel_mask is a 64-bit field and lookups are always by a small
// integer index: O(1) and nothing to allocate beyond the slots actually
// present.
type Event struct {
	EventNum    uint32
	TriggerLow  uint32
	boardID     packette.BoardID
	channelMask uint64
	channels    [packette.NumChannels]*Channel
}

func newEvent(h *packette.Header, boardID packette.BoardID) *Event {
	return &Event{
		EventNum:    h.EventNum,
		TriggerLow:  h.TriggerLow,
		boardID:     boardID,
		channelMask: h.ChannelMask,
	}
}

// PrettyID renders the run's board id as "aa:bb:cc:dd:ee:ff".
func (e *Event) PrettyID() string {
	return e.boardID.String()
}

// HasChannel reports whether channel i was present in the channel_mask of
// the first packet seen for this event.
func (e *Event) HasChannel(i uint16) bool {
	return e.channelMask&(1<<i) != 0
}

// Channel returns the channel at index i and whether it is present.
func (e *Event) Channel(i uint16) (*Channel, bool) {
	if i >= packette.NumChannels || !e.HasChannel(i) {
		return nil, false
	}
	return e.channels[i], true
}

// Channels returns every present channel keyed by channel index, matching
// the language-neutral API's map<u8, Channel>.
func (e *Event) Channels() map[uint16]*Channel {
	out := make(map[uint16]*Channel)
	for i := uint16(0); i < packette.NumChannels; i++ {
		if e.HasChannel(i) {
			out[i] = e.channels[i]
		}
	}
	return out
}

func (e *Event) ensureChannel(view ViewMode, idx uint16, totalSamples, drs4Stop uint16) *Channel {
	c := e.channels[idx]
	if c == nil {
		c = newChannel(idx, totalSamples, drs4Stop, view)
		e.channels[idx] = c
	}
	return c
}

func (e *Event) rebuildCaches() {
	for i := range e.channels {
		if e.channels[i] != nil {
			e.channels[i].buildCache()
		}
	}
}

func (e *Event) switchView(newView ViewMode) {
	for i := range e.channels {
		if e.channels[i] != nil {
			e.channels[i].switchView(newView)
			e.channels[i].buildCache()
		}
	}
}
