package audio

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func TestLevelSilenceIsZero(t *testing.T) {
	t.Parallel()

	if got := Level(make([]byte, 640)); got != 0 {
		t.Fatalf("silence should meter to 0, got %f", got)
	}
	if got := Level(nil); got != 0 {
		t.Fatalf("empty buffer should meter to 0, got %f", got)
	}
}

func TestLevelFullScaleClipsToOne(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 4)
	samples := []int16{-32768, 32767}
	binary.LittleEndian.PutUint16(buf[0:], uint16(samples[0]))
	binary.LittleEndian.PutUint16(buf[2:], uint16(samples[1]))

	if got := Level(buf); got != 1 {
		t.Fatalf("full-scale sample should meter to 1, got %f", got)
	}
}

func TestLevelTracksPeak(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 6)
	samples := []int16{100, -16384, 8192}
	binary.LittleEndian.PutUint16(buf[0:], uint16(samples[0]))
	binary.LittleEndian.PutUint16(buf[2:], uint16(samples[1]))
	binary.LittleEndian.PutUint16(buf[4:], uint16(samples[2]))

	got := Level(buf)
	want := 16384.0 / 32768.0
	if got != want {
		t.Fatalf("expected peak %f, got %f", want, got)
	}
}

func TestLevelIgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()

	buf := []byte{0x00, 0x00, 0xFF}
	if got := Level(buf); got != 0 {
		t.Fatalf("trailing byte must not affect the level, got %f", got)
	}
}

func TestLevelAlwaysWithinUnitRange(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		buf := make([]byte, rng.Intn(2048))
		rng.Read(buf)
		got := Level(buf)
		if got < 0 || got > 1 {
			t.Fatalf("level out of range for random buffer: %f", got)
		}
	}
}

func TestChunkBufferAppendFlush(t *testing.T) {
	t.Parallel()

	b := NewChunkBuffer()
	if b.Flush() != nil {
		t.Fatalf("fresh buffer should flush nil")
	}

	b.Append([]byte("abc"))
	b.Append(nil)
	b.Append([]byte("def"))
	if b.Len() != 6 {
		t.Fatalf("unexpected length: %d", b.Len())
	}

	got := b.Flush()
	if string(got) != "abcdef" {
		t.Fatalf("unexpected flush contents: %q", got)
	}
	if b.Len() != 0 || b.Flush() != nil {
		t.Fatalf("flush must reset the accumulator")
	}
}

func TestChunkBufferFlushIsDetached(t *testing.T) {
	t.Parallel()

	b := NewChunkBuffer()
	b.Append([]byte("xy"))
	first := b.Flush()
	b.Append([]byte("zz"))
	if string(first) != "xy" {
		t.Fatalf("later appends must not mutate a flushed chunk: %q", first)
	}
}
