// Package media holds the frame types flowing through the streaming
// pipeline and the conversions between decoder-native and wire layouts.
package media

import (
	"fmt"
	"time"
)

// MediaInfo describes the two streams of the source file.
// It is computed once when the file is opened and never mutated.
type MediaInfo struct {
	VideoWidth      int
	VideoHeight     int
	VideoFPS        float64
	AudioSampleRate int
	AudioChannels   int
}

func (i MediaInfo) Validate() error {
	if i.VideoWidth <= 0 || i.VideoHeight <= 0 || i.VideoFPS <= 0 {
		return fmt.Errorf("media: bad video stream params %dx%d@%.2f", i.VideoWidth, i.VideoHeight, i.VideoFPS)
	}
	if i.AudioSampleRate <= 0 || i.AudioChannels <= 0 {
		return fmt.Errorf("media: bad audio stream params %dHz ch=%d", i.AudioSampleRate, i.AudioChannels)
	}
	return nil
}

// VideoFrame is one RGBA8888 picture.
// len(Data) == Width*Height*4, alpha is always 0xff.
type VideoFrame struct {
	Width  int
	Height int
	Data   []byte
}

// Duration returns the nominal display time of the frame at the given rate.
func (f VideoFrame) Duration(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

// AudioFrame is one block of interleaved signed 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel*Channels*2.
type AudioFrame struct {
	SampleRate        int
	Channels          int
	SamplesPerChannel int
	Data              []byte
}

// Duration returns the playback time covered by the frame.
func (f AudioFrame) Duration() time.Duration {
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// Samples reinterprets the frame data as 16-bit samples.
func (f AudioFrame) Samples() Samples {
	out := make(Samples, len(f.Data)/2)
	for i := range out {
		out[i] = int16(uint16(f.Data[2*i]) | uint16(f.Data[2*i+1])<<8)
	}
	return out
}

// RawVideoFrame is a decoded picture as the decoder hands it over:
// packed RGB24, no alpha.
type RawVideoFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// RawAudioFrame is a decoded audio unit in the codec-native planar layout:
// one float32 plane per channel, all planes of equal length.
type RawAudioFrame struct {
	SampleRate int
	Planes     [][]float32
}
