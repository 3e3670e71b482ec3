package audio

import "sync"

// ChunkBuffer accumulates captured PCM bytes between flushes. The
// session appends from its read pump and flushes on a fixed interval,
// transmitting each flush as one binary frame.
type ChunkBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append copies p into the accumulator.
func (b *ChunkBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	b.mu.Unlock()
}

// Flush returns the accumulated bytes and resets the accumulator.
// It returns nil when nothing has been appended since the last flush.
func (b *ChunkBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = nil
	return out
}

// Len reports the number of accumulated bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
