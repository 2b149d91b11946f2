package packette

import "fmt"

// ErrShortRead reports fewer bytes than a complete header or payload
// needs: DecodeHeader returns it for a short buffer, and Run.Get returns it
// when an event's payload has not fully arrived. (A short header read
// while indexing or reassembling is not an error; the scan just stops.)
// It is recoverable: the caller treats the missing bytes as "not yet
// arrived", exactly as a live-growing backing file behaves under
// concurrent writes.
var ErrShortRead = fmt.Errorf("packette: short read")

// HeterogeneousBoardError reports that a packet's board_id did not match
// the run's established board_id. This is fatal for the run: a run is
// defined to carry exactly one board's traffic.
type HeterogeneousBoardError struct {
	Expected BoardID
	Got      BoardID
}

func (e *HeterogeneousBoardError) Error() string {
	return fmt.Sprintf("packette: heterogeneous board identifiers in run: expected %s, got %s", e.Expected, e.Got)
}

// EventCollisionError reports that the index builder tried to record an
// event_num that already has an offset table entry. This indicates bad or
// anomalous input (e.g. a backing file that was appended to out of order)
// and is treated as fatal by the index builder.
type EventCollisionError struct {
	EventNum uint32
}

func (e *EventCollisionError) Error() string {
	return fmt.Sprintf("packette: event number collision: event %d already indexed", e.EventNum)
}

// FragmentOverflowError reports that a fragment's declared
// [rel_offset, rel_offset+num_samples) range extends past the channel's
// total_samples. This is never fatal: the reassembler drops the offending
// fragment and continues, logging a warning via the caller.
type FragmentOverflowError struct {
	EventNum     uint32
	Channel      uint16
	RelOffset    uint16
	NumSamples   uint16
	TotalSamples uint16
}

func (e *FragmentOverflowError) Error() string {
	return fmt.Sprintf("packette: fragment overflow: event %d channel %d: [%d,%d) exceeds total_samples %d",
		e.EventNum, e.Channel, e.RelOffset, int(e.RelOffset)+int(e.NumSamples), e.TotalSamples)
}

// MissingFileError reports that a persisted run's backing file could not
// be reopened on deserialize. This is fatal: there is no recovery path
// short of the caller supplying a new file list.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("packette: backing file %q could not be reopened: %v", e.Path, e.Err)
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// CaptureChildLostError reports that the live-capture goroutine exited
// while the parent run still expects it to be appending data. It is never
// returned directly from a blocking call; it surfaces via the next
// UpdateIndex call simply failing to observe file growth, and callers that
// want to detect it explicitly can inspect Run.CaptureErr().
type CaptureChildLostError struct {
	Err error
}

func (e *CaptureChildLostError) Error() string {
	if e.Err == nil {
		return "packette: capture child exited"
	}
	return fmt.Sprintf("packette: capture child exited: %v", e.Err)
}

func (e *CaptureChildLostError) Unwrap() error {
	return e.Err
}

// ZeroCountError reports a pedestal cell (channel, capacitor) that
// accumulated zero valid samples across every input file. It is a warning,
// not a failure: the aggregator leaves mean and stdev at zero for that
// cell and continues.
type ZeroCountError struct {
	Channel   uint16
	Capacitor int
}

func (e *ZeroCountError) Error() string {
	return fmt.Sprintf("packette: zero valid samples for channel %d, capacitor %d", e.Channel, e.Capacitor)
}
