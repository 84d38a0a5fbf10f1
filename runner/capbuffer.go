package runner

import "bytes"

// capBuffer collects stream output up to a fixed ceiling. Writes beyond
// the ceiling are accepted but dropped, and the dropped byte count is
// retained so callers can report the truncation. This bounds memory use
// for chatty tools without failing the execution.
type capBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int
}

func newCapBuffer(limit int) *capBuffer {
	return &capBuffer{limit: limit}
}

// Write never returns an error: short-circuiting a copy with an error
// would surface as a command failure, and truncation is not a failure.
func (b *capBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.dropped += len(p)
		return len(p), nil
	}
	if len(p) <= remaining {
		b.buf.Write(p)
		return len(p), nil
	}
	b.buf.Write(p[:remaining])
	b.dropped += len(p) - remaining
	return len(p), nil
}

func (b *capBuffer) String() string {
	return b.buf.String()
}

func (b *capBuffer) Dropped() int {
	return b.dropped
}
