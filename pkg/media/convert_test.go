package media

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestToRGBA(t *testing.T) {
	raw := RawVideoFrame{Width: 2, Height: 2, Pix: []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}}
	frame, err := ToRGBA(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Data) != raw.Width*raw.Height*4 {
		t.Fatalf("rgba size = %v, want %v", len(frame.Data), raw.Width*raw.Height*4)
	}
	for i := 0; i < len(frame.Data); i += 4 {
		r, g, b := raw.Pix[i/4*3], raw.Pix[i/4*3+1], raw.Pix[i/4*3+2]
		if frame.Data[i] != r || frame.Data[i+1] != g || frame.Data[i+2] != b {
			t.Errorf("pixel %v = %v, want [%v %v %v]", i/4, frame.Data[i:i+3], r, g, b)
		}
		if frame.Data[i+3] != 0xff {
			t.Errorf("alpha at pixel %v = %v, want 255", i/4, frame.Data[i+3])
		}
	}
}

func TestToRGBATruncated(t *testing.T) {
	if _, err := ToRGBA(RawVideoFrame{Width: 2, Height: 2, Pix: make([]byte, 11)}); err == nil {
		t.Error("truncated rgb24 frame should not convert")
	}
}

func TestToPCM16(t *testing.T) {
	raw := RawAudioFrame{SampleRate: 8000, Planes: [][]float32{
		{0, 0.5, -0.5, 1},
		{0.25, -0.25, 1.5, -1.5},
	}}
	frame, err := ToPCM16(raw)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Channels != 2 || frame.SamplesPerChannel != 4 {
		t.Fatalf("layout = ch%v x %v, want ch2 x 4", frame.Channels, frame.SamplesPerChannel)
	}
	if len(frame.Data) != frame.SamplesPerChannel*frame.Channels*2 {
		t.Fatalf("pcm size = %v, want %v", len(frame.Data), frame.SamplesPerChannel*frame.Channels*2)
	}
	want := []int16{
		0, 8192, // s0: L, R
		16384, -8192, // s1
		-16384, 32767, // s2, R saturated high
		32767, -32768, // s3: 1*32768 clamps, R saturated low
	}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(frame.Data[i*2:]))
		if got != w {
			t.Errorf("sample %v = %v, want %v", i, got, w)
		}
	}
}

func TestToPCM16UnevenPlanes(t *testing.T) {
	raw := RawAudioFrame{SampleRate: 8000, Planes: [][]float32{{0, 0}, {0}}}
	if _, err := ToPCM16(raw); err == nil {
		t.Error("uneven planes should not convert")
	}
}

func TestDurations(t *testing.T) {
	a := AudioFrame{SampleRate: 8000, SamplesPerChannel: 800}
	if a.Duration() != 100*time.Millisecond {
		t.Errorf("audio duration = %v, want 100ms", a.Duration())
	}
	v := VideoFrame{}
	if v.Duration(10) != 100*time.Millisecond {
		t.Errorf("video duration = %v, want 100ms", v.Duration(10))
	}
}

func TestMediaInfoValidate(t *testing.T) {
	tests := []struct {
		name string
		info MediaInfo
		ok   bool
	}{
		{name: "ok", info: MediaInfo{64, 64, 10, 8000, 1}, ok: true},
		{name: "no video", info: MediaInfo{0, 0, 0, 8000, 1}},
		{name: "no audio", info: MediaInfo{64, 64, 10, 0, 0}},
		{name: "bad fps", info: MediaInfo{64, 64, -1, 8000, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.info.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok = %v", err, tt.ok)
			}
		})
	}
}
