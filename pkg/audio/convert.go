// Package audio converts microphone capture from the browser into the
// linear16 mono PCM that speech providers are configured for.
//
// Browsers capture through Web Audio at the context's rate (typically 44.1
// or 48 kHz) as float32 samples; some clients downsample and encode int16
// themselves. A [Converter] accepts either and resamples on the server.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Encoding names the sample encoding of a capture stream.
type Encoding string

const (
	// Linear16 is little-endian signed 16-bit PCM.
	Linear16 Encoding = "linear16"

	// Float32 is little-endian IEEE 754 samples in [-1, 1], as produced by
	// an AudioWorklet.
	Float32 Encoding = "float32"
)

// Format describes a capture stream.
type Format struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// String returns e.g. "float32 48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = strconv.Itoa(f.Channels) + "ch"
	}
	return fmt.Sprintf("%s %dHz %s", f.Encoding, f.SampleRate, ch)
}

// Validate reports whether f can be converted.
func (f Format) Validate() error {
	var errs []error
	if f.Encoding != Linear16 && f.Encoding != Float32 {
		errs = append(errs, fmt.Errorf("audio: unsupported encoding %q", f.Encoding))
	}
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio: sample rate %d out of range", f.SampleRate))
	}
	if f.Channels != 1 && f.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio: %d channels not supported", f.Channels))
	}
	return errors.Join(errs...)
}

// frameSize is the byte length of one sample across all channels.
func (f Format) frameSize() int {
	if f.Encoding == Float32 {
		return 4 * f.Channels
	}
	return 2 * f.Channels
}

// Converter turns chunks in Source format into linear16 mono at
// TargetRate. Bytes of a frame split across chunks are carried over to the
// next call. Create one per connection; not safe for concurrent use.
type Converter struct {
	Source     Format
	TargetRate int

	carry []byte
}

// NewConverter returns a converter from src to linear16 mono at targetRate.
func NewConverter(src Format, targetRate int) (*Converter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if targetRate <= 0 {
		return nil, fmt.Errorf("audio: target rate %d must be positive", targetRate)
	}
	return &Converter{Source: src, TargetRate: targetRate}, nil
}

// Passthrough reports whether chunks are forwarded unchanged.
func (c *Converter) Passthrough() bool {
	return c.Source.Encoding == Linear16 && c.Source.Channels == 1 && c.Source.SampleRate == c.TargetRate
}

// Convert converts one chunk. It returns nil when the chunk held less than
// one complete frame.
func (c *Converter) Convert(chunk []byte) []byte {
	if len(c.carry) > 0 {
		chunk = append(c.carry, chunk...)
		c.carry = nil
	}
	fs := c.Source.frameSize()
	if rem := len(chunk) % fs; rem != 0 {
		c.carry = append([]byte(nil), chunk[len(chunk)-rem:]...)
		chunk = chunk[:len(chunk)-rem]
	}
	if len(chunk) == 0 {
		return nil
	}
	if c.Passthrough() {
		return chunk
	}

	pcm := chunk
	if c.Source.Encoding == Float32 {
		pcm = Float32ToLinear16(pcm)
	}
	if c.Source.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	return ResampleMono16(pcm, c.Source.SampleRate, c.TargetRate)
}

// Float32ToLinear16 converts little-endian float32 samples to int16,
// clamping to [-1, 1]. NaN becomes silence.
func Float32ToLinear16(b []byte) []byte {
	n := len(b) / 4
	out := make([]byte, n*2)
	for i := range n {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		var s int16
		switch {
		case math.IsNaN(float64(f)):
			s = 0
		case f >= 1:
			s = math.MaxInt16
		case f <= -1:
			s = math.MinInt16
		default:
			s = int16(f * math.MaxInt16)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	// Each stereo frame is 4 bytes (2 bytes L + 2 bytes R).
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}
