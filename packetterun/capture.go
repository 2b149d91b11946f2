package packetterun

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kcroker/packette/packette"
)

// captureBufferSize is the per-datagram receive buffer; packette
// datagrams are never larger than this.
const captureBufferSize = 4096

// captureReadTimeout bounds each blocking receive so the capture
// goroutine can periodically check for shutdown. It doubles as the
// teacher-domain's "parent liveness" watchdog period, reinterpreted here
// as a context-cancellation check.
const captureReadTimeout = 1 * time.Second

// liveCapture owns the UDP socket and the write side of a run's backing
// file while it is being captured live. It corresponds to the forked
// child process in the original tooling; since Go has no fork() that
// shares only a socket and a file, a goroutine with explicit cancellation
// plays the same role within the same process.
type liveCapture struct {
	conn   *net.UDPConn
	file   *os.File
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// stop cancels the capture goroutine and waits for it to exit.
func (c *liveCapture) stop() {
	c.cancel()
	<-c.done
}

func (c *liveCapture) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *liveCapture) getErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// run receives datagrams and appends them raw, in arrival order, to the
// backing file until ctx is canceled or the socket/file fails. Datagrams
// are never reordered or inspected for sequence-number gaps: loss and
// reordering are tolerated per the engine's wire contract (SPEC_FULL.md
// §4.7).
func (c *liveCapture) run(ctx context.Context, log *logrus.Logger) {
	defer close(c.done)
	defer c.file.Close()
	defer c.conn.Close()

	buf := make([]byte, captureBufferSize)
	for {
		select {
		case <-ctx.Done():
			log.Debug("packetterun: capture goroutine stopping on shutdown request")
			return
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(captureReadTimeout)); err != nil {
			c.setErr(&packette.CaptureChildLostError{Err: err})
			return
		}

		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.setErr(&packette.CaptureChildLostError{Err: err})
			log.WithError(err).Warn("packetterun: capture goroutine lost its socket")
			return
		}

		if _, err := c.file.Write(buf[:n]); err != nil {
			c.setErr(&packette.CaptureChildLostError{Err: err})
			log.WithError(err).Warn("packetterun: capture goroutine failed to append to backing file")
			return
		}
	}
}

// OpenLive binds a UDP socket at host:port, creates a timestamped backing
// file, and starts a capture goroutine that appends every datagram it
// receives to that file verbatim. It then opens the same file read-only
// as an ordinary file-backed Run and returns it alongside the backing
// file's path.
func OpenLive(host string, port int, view ViewMode) (*Run, string, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("packetterun: binding live endpoint %s:%d: %w", host, port, err)
	}

	fname := fmt.Sprintf("packetteRun_%s_%d_%d.dat", host, port, time.Now().UnixNano())
	wf, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("packetterun: creating backing file %s: %w", fname, err)
	}

	log := logrus.StandardLogger()
	ctx, cancel := context.WithCancel(context.Background())
	capture := &liveCapture{conn: conn, file: wf, cancel: cancel, done: make(chan struct{})}
	go capture.run(ctx, log)

	log.WithFields(logrus.Fields{"file": fname, "host": host, "port": port}).
		Info("packetterun: live capture started")

	r, err := Open([]string{fname}, view)
	if err != nil {
		capture.stop()
		return nil, fname, err
	}
	r.capture = capture
	r.Log = log
	return r, fname, nil
}
