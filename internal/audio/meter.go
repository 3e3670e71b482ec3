package audio

import "encoding/binary"

const fullScale = 32768.0

// Level computes the peak normalized deviation from the midpoint across
// a buffer of s16le PCM samples. Silence yields 0, a full-scale sample
// yields 1. A trailing odd byte is ignored.
func Level(pcm []byte) float64 {
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}

	level := float64(peak) / fullScale
	if level > 1 {
		level = 1
	}
	return level
}
