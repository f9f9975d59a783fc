package recorder

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
)

var testInfo = media.MediaInfo{
	VideoWidth:      2,
	VideoHeight:     2,
	VideoFPS:        10,
	AudioSampleRate: 8000,
	AudioChannels:   1,
}

func TestRecordingRoundtrip(t *testing.T) {
	dir := t.TempDir()
	rec, err := New(Options{Dir: dir, Name: "session"}, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	video, audio, err := rec.Publish(testInfo)
	if err != nil {
		t.Fatal(err)
	}

	vframe := media.VideoFrame{Width: 2, Height: 2, Data: make([]byte, 16)}
	for i := range vframe.Data {
		vframe.Data[i] = byte(i)
	}
	if err := video.CaptureFrame(vframe); err != nil {
		t.Fatal(err)
	}
	if err := video.CaptureFrame(vframe); err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 8)
	sample := int16(-42)
	binary.LittleEndian.PutUint16(pcm, uint16(sample))
	aframe := media.AudioFrame{SampleRate: 8000, Channels: 1, SamplesPerChannel: 4, Data: pcm}
	if err := audio.CaptureFrame(aframe); err != nil {
		t.Fatal(err)
	}

	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "session", videoFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 32 {
		t.Errorf("video file size = %v, want 32", len(raw))
	}
	if raw[3] != 3 || raw[16] != 0 {
		t.Error("video frames not appended in order")
	}

	wav, err := os.ReadFile(filepath.Join(dir, "session", audioFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(wav) != audioFileRIFFSize+len(pcm) {
		t.Fatalf("wav file size = %v, want %v", len(wav), audioFileRIFFSize+len(pcm))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF header")
	}
	if ch := int(wav[22]); ch != testInfo.AudioChannels {
		t.Errorf("wav channels = %v, want %v", ch, testInfo.AudioChannels)
	}
	rate := int(binary.LittleEndian.Uint32(wav[24:28]))
	if rate != testInfo.AudioSampleRate {
		t.Errorf("wav sample rate = %v, want %v", rate, testInfo.AudioSampleRate)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[audioFileRIFFSize:])); got != -42 {
		t.Errorf("first sample = %v, want -42", got)
	}
}

func TestPublishTwice(t *testing.T) {
	rec, err := New(Options{Dir: t.TempDir(), Name: "x"}, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := rec.Publish(testInfo); err != nil {
		t.Fatal(err)
	}
	if _, _, err := rec.Publish(testInfo); err == nil {
		t.Error("second Publish should fail")
	}
	_ = rec.Close()
}

func TestParseName(t *testing.T) {
	out := parseName("%date:2006%-%rand:4%")
	if strings.Contains(out, "%") {
		t.Errorf("placeholders left in %q", out)
	}
	parts := strings.Split(out, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		t.Errorf("unexpected name %q", out)
	}
	if got := parseName("plain"); got != "plain" {
		t.Errorf("parseName(plain) = %q", got)
	}
}
