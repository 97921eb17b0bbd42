package subprocess

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nahin/codetutor/internal/executor"
)

// capture drains the child's stdout and stderr in the background.
//
// One goroutine per stream does the blocking reads; nothing outside this
// file ever touches the pipes. Chunks land in the owning session's queue in
// read order. When both streams hit EOF the child is reaped, the session
// gets its completion chunk, and done is closed — that channel is what the
// dispatcher's grace-window select waits on.
type capture struct {
	proc *process
	sess *session
	done chan struct{}
}

func newCapture(proc *process, sess *session) *capture {
	return &capture{
		proc: proc,
		sess: sess,
		done: make(chan struct{}),
	}
}

// start launches the two stream readers and the finisher goroutine.
func (c *capture) start() {
	var readers sync.WaitGroup
	readers.Add(2)
	go c.pump(c.proc.stdout, executor.StreamStdout, &readers)
	go c.pump(c.proc.stderr, executor.StreamStderr, &readers)

	go func() {
		// Wait must not run while the pipes are being read, so the finisher
		// is the only place that reaps.
		readers.Wait()
		c.proc.reap()
		c.sess.finish(c.proc.exitCode, c.proc.runErr)
		close(c.done)
	}()
}

// pump reads one stream until EOF, decoding incrementally and appending
// chunks to the session queue.
func (c *capture) pump(r io.Reader, stream executor.Stream, readers *sync.WaitGroup) {
	defer readers.Done()

	var dec utf8Decoder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if text := dec.decode(buf[:n]); text != "" {
				c.sess.appendOutput(stream, text)
			}
		}
		if err != nil {
			// EOF, or the pipe was torn down by a kill. Either way flush
			// whatever partial rune is still pending and stop.
			if text := dec.flush(); text != "" {
				c.sess.appendOutput(stream, text)
			}
			return
		}
	}
}

// utf8Decoder turns an arbitrary byte stream into valid UTF-8 text.
//
// A multi-byte character can be split across two reads (a 4KB read boundary
// lands wherever it lands). The decoder holds back a trailing partial rune
// until its continuation bytes arrive, so a chunk never ends mid-character.
// Genuinely invalid sequences are replaced with U+FFFD instead of aborting
// capture — learner programs write whatever they write.
type utf8Decoder struct {
	pending []byte
}

// decode consumes the next read and returns the decodable prefix as text.
// Returns "" when everything read so far is still a partial rune.
func (d *utf8Decoder) decode(p []byte) string {
	b := p
	if len(d.pending) > 0 {
		b = append(d.pending, p...)
	}

	// Find the last rune start within the final UTFMax bytes. If the rune it
	// begins is incomplete, hold those bytes back for the next read.
	keep := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				keep = i
			}
			break
		}
	}

	d.pending = append([]byte(nil), b[keep:]...)

	complete := b[:keep]
	if len(complete) == 0 {
		return ""
	}
	if utf8.Valid(complete) {
		return string(complete)
	}
	return strings.ToValidUTF8(string(complete), "�")
}

// flush emits whatever is still pending at EOF. A dangling partial rune at
// end of stream can never complete, so it comes out as U+FFFD.
func (d *utf8Decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(d.pending), "�")
	d.pending = nil
	return out
}
