package engine

import (
	"encoding/binary"
	"math"
)

// pcmReader pulls frames from the engine's master bus and encodes them as
// signed 16-bit little-endian PCM. It never reports EOF: an idle bus reads
// as silence.
type pcmReader struct {
	e        *Engine
	channels int
	samples  [][2]float64
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frameSize := r.channels * 2
	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}
	if cap(r.samples) < frames {
		r.samples = make([][2]float64, frames)
	}
	samples := r.samples[:frames]

	n := r.e.stream(samples)
	for i := n; i < frames; i++ {
		samples[i] = [2]float64{}
	}

	encodePCM16(p, samples, r.channels)
	return frames * frameSize, nil
}

// encodePCM16 writes samples into p. Mono output averages both channels.
func encodePCM16(p []byte, samples [][2]float64, channels int) {
	off := 0
	for _, s := range samples {
		if channels == 1 {
			putSample(p[off:], (s[0]+s[1])/2)
			off += 2
			continue
		}
		putSample(p[off:], s[0])
		putSample(p[off+2:], s[1])
		off += 4
	}
}

func putSample(p []byte, v float64) {
	v = math.Max(-1, math.Min(1, v))
	binary.LittleEndian.PutUint16(p, uint16(int16(v*math.MaxInt16)))
}
