package config

import (
	"github.com/spf13/pflag"
)

type (
	Config struct {
		Streamer   Streamer
		Sync       Sync
		Webrtc     Webrtc
		Recorder   Recorder
		Monitoring Monitoring
		Debug      bool
		JSONLogs   bool `fig:"jsonlogs"`
	}
	Streamer struct {
		MediaFile         string `fig:"mediafile"`
		FfmpegPath        string `fig:"ffmpegpath" default:"ffmpeg"`
		FfprobePath       string `fig:"ffprobepath" default:"ffprobe"`
		AudioFrameSamples int    `fig:"audioframesamples" default:"1024"`
	}
	Sync struct {
		QueueSizeMs int `fig:"queuesizems" default:"1000"`
	}
	Webrtc struct {
		Enabled       bool   `fig:"enabled"`
		SignalAddress string `fig:"signaladdress" default:":9000"`
		IceServers    []string
		Video         Video
		Audio         Audio
	}
	Video struct {
		Preset  string `fig:"preset" default:"superfast"`
		Tune    string `fig:"tune" default:"zerolatency"`
		Profile string `fig:"profile" default:"baseline"`
	}
	Audio struct {
		FrameMs int `fig:"framems" default:"20"`
	}
	Recorder struct {
		Enabled bool   `fig:"enabled"`
		Dir     string `fig:"dir" default:"recording"`
		Name    string `fig:"name" default:"%date:20060102%-%rand:4%"`
	}
	Monitoring struct {
		Port             int    `fig:"port"`
		URLPrefix        string `fig:"urlprefix"`
		ProfilingEnabled bool   `fig:"profilingenabled"`
		MetricEnabled    bool   `fig:"metricenabled"`
	}
)

// allows custom config path
var configPath string

func NewConfig() (*Config, error) {
	var conf Config
	if err := LoadConfig(&conf, configPath); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) WithFlags(fs *pflag.FlagSet) *Config {
	fs.StringVarP(&c.Streamer.MediaFile, "file", "f", c.Streamer.MediaFile, "Path to the looped media file")
	fs.IntVar(&c.Sync.QueueSizeMs, "sync.queue", c.Sync.QueueSizeMs, "Look-ahead queue size (ms of audio)")
	fs.BoolVar(&c.Recorder.Enabled, "record", c.Recorder.Enabled, "Write frames to a local recording")
	fs.BoolVar(&c.Webrtc.Enabled, "webrtc", c.Webrtc.Enabled, "Publish frames over WebRTC")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	fs.StringVarP(&configPath, "conf", "c", "", "Set custom configuration file path")
	return c
}
