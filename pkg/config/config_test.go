package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfigCustomPath(t *testing.T) {
	dir := writeConfig(t, "debug: true\nsync:\n  queuesizems: 250\n")
	var c Config
	if err := LoadConfig(&c, dir); err != nil {
		t.Fatal(err)
	}
	if !c.Debug {
		t.Error("debug flag not read")
	}
	if c.Sync.QueueSizeMs != 250 {
		t.Errorf("queuesizems = %v, want 250", c.Sync.QueueSizeMs)
	}
	// untouched values fall back to the struct defaults
	if c.Streamer.FfmpegPath != "ffmpeg" {
		t.Errorf("ffmpegpath = %q, want ffmpeg", c.Streamer.FfmpegPath)
	}
	if c.Webrtc.Audio.FrameMs != 20 {
		t.Errorf("framems = %v, want 20", c.Webrtc.Audio.FrameMs)
	}
}

func TestWithFlagsOverridesConfig(t *testing.T) {
	dir := writeConfig(t, "sync:\n  queuesizems: 250\n")
	var c Config
	if err := LoadConfig(&c, dir); err != nil {
		t.Fatal(err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.WithFlags(fs)
	if err := fs.Parse([]string{"--file", "a.mp4", "--sync.queue", "300", "--record"}); err != nil {
		t.Fatal(err)
	}
	if c.Streamer.MediaFile != "a.mp4" {
		t.Errorf("mediafile = %q", c.Streamer.MediaFile)
	}
	if c.Sync.QueueSizeMs != 300 {
		t.Errorf("flag did not override config value, queuesizems = %v", c.Sync.QueueSizeMs)
	}
	if !c.Recorder.Enabled {
		t.Error("record flag not bound")
	}
}
