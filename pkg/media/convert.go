package media

import (
	"encoding/binary"
	"fmt"
)

// ToRGBA expands a packed RGB24 picture into RGBA8888 with an opaque
// alpha plane. Dimensions are carried over exactly, no scaling.
func ToRGBA(raw RawVideoFrame) (VideoFrame, error) {
	n := raw.Width * raw.Height
	if len(raw.Pix) != n*3 {
		return VideoFrame{}, fmt.Errorf("media: rgb24 size mismatch [%v!=%v]", len(raw.Pix), n*3)
	}
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		out[i*4] = raw.Pix[i*3]
		out[i*4+1] = raw.Pix[i*3+1]
		out[i*4+2] = raw.Pix[i*3+2]
		out[i*4+3] = 0xff
	}
	return VideoFrame{Width: raw.Width, Height: raw.Height, Data: out}, nil
}

// ToPCM16 converts planar float32 samples into interleaved s16le PCM.
// Values are scaled by 32768 and saturated into the int16 range, and the
// channel-major planes are transposed into sample-major order.
func ToPCM16(raw RawAudioFrame) (AudioFrame, error) {
	channels := len(raw.Planes)
	if channels == 0 {
		return AudioFrame{}, fmt.Errorf("media: audio unit without channels")
	}
	samples := len(raw.Planes[0])
	for ch, p := range raw.Planes {
		if len(p) != samples {
			return AudioFrame{}, fmt.Errorf("media: uneven audio planes [ch %v: %v!=%v]", ch, len(p), samples)
		}
	}
	out := make([]byte, samples*channels*2)
	for s := 0; s < samples; s++ {
		for ch := 0; ch < channels; ch++ {
			v := pcm16(raw.Planes[ch][s])
			binary.LittleEndian.PutUint16(out[(s*channels+ch)*2:], uint16(v))
		}
	}
	return AudioFrame{
		SampleRate:        raw.SampleRate,
		Channels:          channels,
		SamplesPerChannel: samples,
		Data:              out,
	}, nil
}

func pcm16(v float32) int16 {
	s := int32(v * 32768)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
