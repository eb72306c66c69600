package engine

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Some wav decoder releases divide n-bit PCM by 2^n-1 instead of 2^(n-1),
// which halves every 16 and 24-bit file. wavScale measures the decoder once
// per sample width and returns the gain that restores full scale.
var (
	wavScaleMu sync.Mutex
	wavScales  = map[int]float64{}
)

func wavScale(precision int) float64 {
	if precision < 2 || precision > 3 {
		return 1
	}
	wavScaleMu.Lock()
	defer wavScaleMu.Unlock()
	if s, ok := wavScales[precision]; ok {
		return s
	}
	s := measureWAVScale(precision)
	wavScales[precision] = s
	return s
}

// measureWAVScale decodes a one-frame stereo file holding half of full
// scale.
func measureWAVScale(precision int) float64 {
	stream, _, err := wav.Decode(bytes.NewReader(halfScaleWAV(precision)))
	if err != nil {
		return 1
	}
	defer stream.Close()

	samples := make([][2]float64, 1)
	if n, _ := stream.Stream(samples); n != 1 || samples[0][0] <= 0 {
		return 1
	}
	s := 0.5 / samples[0][0]
	if math.Abs(s-1) < 0.01 {
		return 1
	}
	return s
}

// halfScaleWAV builds a canonical PCM wav with one stereo frame of
// 2^(bits-2), which is 0.5 once normalized.
func halfScaleWAV(precision int) []byte {
	const (
		rate     = 44100
		channels = 2
	)
	sample := make([]byte, 4)
	binary.LittleEndian.PutUint32(sample, 1<<(precision*8-2))
	var data []byte
	for c := 0; c < channels; c++ {
		data = append(data, sample[:precision]...)
	}

	var b bytes.Buffer
	put := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	put(uint32(36 + len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	put(uint32(16))
	put(uint16(1)) // PCM
	put(uint16(channels))
	put(uint32(rate))
	put(uint32(rate * channels * precision))
	put(uint16(channels * precision))
	put(uint16(precision * 8))
	b.WriteString("data")
	put(uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

// scaledStream multiplies every sample by gain.
type scaledStream struct {
	beep.StreamSeekCloser
	gain float64
}

func (s *scaledStream) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.StreamSeekCloser.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] *= s.gain
		samples[i][1] *= s.gain
	}
	return n, ok
}

// decodeWAV decodes a wav file at full scale.
func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	stream, format, err := wav.Decode(f)
	if err != nil {
		return nil, format, err
	}
	if g := wavScale(format.Precision); g != 1 {
		return &scaledStream{StreamSeekCloser: stream, gain: g}, format, nil
	}
	return stream, format, nil
}
