package packetterun

import "github.com/kcroker/packette/packette"

// ViewMode selects the coordinate system a Run's channels are read in.
type ViewMode int

const (
	// ViewTime reads a channel starting at its DRS4 stop capacitor and
	// proceeding forward in physical time; index 0 is the stop sample.
	ViewTime ViewMode = iota
	// ViewSCA reads a channel by absolute capacitor number; index 0 is
	// capacitor 0.
	ViewSCA
)

// scaLen is the switched-capacitor ring length, and therefore the fixed
// length of every channel's cached view.
const scaLen = packette.SCALength

// eventCacheCapacity bounds the number of fully-reassembled events a Run
// keeps in memory at once.
const eventCacheCapacity = 100

// defaultMaskWidth is the half-width of the symmetric mask installed
// around a channel's stop sample the first time it is seen. Both 5 and 15
// appear in the original tooling; 15 is the one this implementation uses.
const defaultMaskWidth = 15

// maskInterval is a normalized [Low, High) mask range with
// 0 <= Low < High <= scaLen.
type maskInterval struct {
	Low, High int
}

// normalizeInterval splits an interval that may run outside [0, scaLen)
// (negative, or beyond scaLen) into one or two intervals that each satisfy
// 0 <= Low < High <= scaLen, wrapping around the capacitor ring as needed.
// An empty or inverted interval normalizes to nothing.
func normalizeInterval(low, high int) []maskInterval {
	span := high - low
	if span <= 0 {
		return nil
	}
	if span > scaLen {
		span = scaLen
	}
	low = ((low % scaLen) + scaLen) % scaLen
	high = low + span
	if high <= scaLen {
		return []maskInterval{{low, high}}
	}
	return []maskInterval{{low, scaLen}, {0, high - scaLen}}
}

// Channel holds one waveform stream within an Event: its raw (sparse)
// payload in declaration order, its DRS4 stop capacitor, its mask
// intervals (in the Run's current coordinate system), and a materialized
// length-1024 cached view rebuilt lazily on first read after any change.
type Channel struct {
	index        uint16
	drs4Stop     uint16
	totalSamples uint16
	payload      []int16
	masks        []maskInterval
	view         ViewMode

	cachedView [scaLen]int16
	cacheValid bool
}

func newChannel(index uint16, totalSamples, drs4Stop uint16, view ViewMode) *Channel {
	c := &Channel{
		index:        index,
		drs4Stop:     drs4Stop,
		totalSamples: totalSamples,
		payload:      make([]int16, totalSamples),
		view:         view,
	}

	// Install the default symmetric mask around the stop sample. In SCA
	// view that's an absolute capacitor-ring interval; in time view it's
	// an interval relative to index 0 (the stop sample itself), which
	// normalizeInterval wraps into one or two ring intervals exactly as
	// an absolute one would.
	if view == ViewSCA {
		c.addMask(int(drs4Stop)-defaultMaskWidth, int(drs4Stop)+defaultMaskWidth)
	} else {
		c.addMask(-defaultMaskWidth, defaultMaskWidth)
	}

	return c
}

// Index is this channel's number, 0..63.
func (c *Channel) Index() uint16 { return c.index }

// Drs4Stop is the capacitor index at which sampling halted for this
// channel in this event.
func (c *Channel) Drs4Stop() uint16 { return c.drs4Stop }

// Len is the fixed length of the cached view: always 1024.
func (c *Channel) Len() int { return scaLen }

// At returns the cached-view sample at index i, rebuilding the cache
// first if it is stale. Positions outside the channel's declared
// total_samples read back as NotData; masked positions read back as
// MaskedData, both signaled in the sample's low 4 bits. A position inside
// total_samples that no fragment wrote reads back as 0, not NotData.
func (c *Channel) At(i int) int16 {
	if !c.cacheValid {
		c.buildCache()
	}
	return c.cachedView[i]
}

// CachedView returns a copy of the full 1024-long materialized view,
// rebuilding it first if stale.
func (c *Channel) CachedView() [scaLen]int16 {
	if !c.cacheValid {
		c.buildCache()
	}
	return c.cachedView
}

// RawPayload returns the channel's raw (sparse) payload buffer, of length
// total_samples as declared by the first fragment seen for this channel.
// Positions never written by a fragment remain zero, not NotData, and are
// copied into the cached view as zero too; only cached-view positions
// beyond total_samples are NotData.
func (c *Channel) RawPayload() []int16 {
	return c.payload
}

// writeFragment copies samples into the raw payload at [relOffset,
// relOffset+len(samples)). The caller (the reassembler) is responsible for
// having already rejected fragments that would overflow total_samples.
func (c *Channel) writeFragment(relOffset uint16, samples []int16) {
	copy(c.payload[relOffset:], samples)
	c.cacheValid = false
}

// Mask appends a mask interval in the channel's current coordinate
// system. low/high outside [0, scaLen) are normalized into one or two
// wraparound intervals. A no-op if low == high.
func (c *Channel) Mask(low, high int) {
	c.addMask(low, high)
	c.cacheValid = false
}

func (c *Channel) addMask(low, high int) {
	c.masks = append(c.masks, normalizeInterval(low, high)...)
}

// ClearMasks drops every mask interval on this channel and rebuilds the
// cached view.
func (c *Channel) ClearMasks() {
	c.masks = nil
	c.buildCache()
}

// switchView remaps every existing mask interval from the channel's
// current coordinate system into the other one, sets the new view mode,
// and invalidates the cache. Shifting by +Drs4Stop converts time-relative
// coordinates to absolute capacitor coordinates; shifting by -Drs4Stop
// converts back.
func (c *Channel) switchView(newView ViewMode) {
	if newView == c.view {
		return
	}

	shift := int(c.drs4Stop)
	if newView == ViewTime {
		shift = -shift
	}

	newMasks := make([]maskInterval, 0, len(c.masks))
	for _, m := range c.masks {
		newMasks = append(newMasks, normalizeInterval(m.Low+shift, m.High+shift)...)
	}
	c.masks = newMasks
	c.view = newView
	c.cacheValid = false
}

// buildCache materializes the 1024-long cached view from the raw payload
// in the channel's current coordinate system, then overlays every mask
// interval as MaskedData.
func (c *Channel) buildCache() {
	for i := range c.cachedView {
		c.cachedView[i] = packette.NotData
	}

	n := len(c.payload)
	if n > 0 {
		if c.view == ViewSCA {
			stop := int(c.drs4Stop)
			if n > scaLen-stop {
				upto := scaLen - stop
				copy(c.cachedView[stop:], c.payload[:upto])
				copy(c.cachedView[0:n-upto], c.payload[upto:])
			} else {
				copy(c.cachedView[stop:stop+n], c.payload)
			}
		} else {
			copy(c.cachedView[0:n], c.payload)
		}
	}

	for _, m := range c.masks {
		for i := m.Low; i < m.High; i++ {
			c.cachedView[i] = packette.MaskedData
		}
	}

	c.cacheValid = true
}
