package orchestrator

import (
	"regexp"
	"strconv"
	"sync"
)

// outputBuffer captures subprocess output up to a byte limit and extracts
// a progress percentage from incremental writes. It is handed to exec as
// both stdout and stderr, so Write must be safe for concurrent use.
type outputBuffer struct {
	mu       sync.Mutex
	buf      []byte
	limit    int
	dropped  int
	progress float64
	pattern  *regexp.Regexp
}

// newOutputBuffer creates a buffer with the given byte limit. pattern is
// an optional regex whose first capture group yields a 0-100 percentage;
// an invalid pattern disables progress parsing rather than failing the
// launch.
func newOutputBuffer(limit int, pattern string) *outputBuffer {
	b := &outputBuffer{limit: limit}
	if pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil && re.NumSubexp() >= 1 {
			b.pattern = re
		}
	}
	return b
}

// Write appends p to the buffer, discarding bytes past the limit, and
// scans the chunk for progress markers. It never returns an error so a
// chatty subprocess is not killed by a full buffer.
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - len(b.buf); room > 0 {
		if len(p) <= room {
			b.buf = append(b.buf, p...)
		} else {
			b.buf = append(b.buf, p[:room]...)
			b.dropped += len(p) - room
		}
	} else {
		b.dropped += len(p)
	}

	b.scanProgress(p)
	return len(p), nil
}

// scanProgress updates the progress percentage from a chunk. Progress is
// monotonic: a lower value in later output never rewinds it.
func (b *outputBuffer) scanProgress(chunk []byte) {
	if b.pattern == nil {
		return
	}
	for _, m := range b.pattern.FindAllSubmatch(chunk, -1) {
		if len(m) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			continue
		}
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		if v > b.progress {
			b.progress = v
		}
	}
}

// Bytes returns a copy of the captured output.
func (b *outputBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Progress returns the latest parsed percentage, 0 if none was seen.
func (b *outputBuffer) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// Dropped returns how many output bytes were discarded past the limit.
func (b *outputBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset clears captured output and progress before a retry attempt.
func (b *outputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
	b.dropped = 0
	b.progress = 0
}
