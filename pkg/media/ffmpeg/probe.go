// Package ffmpeg reads media files through the ffmpeg/ffprobe binaries:
// stream metadata via ffprobe, raw decoded frames via two independent
// ffmpeg pipe processes (one per stream kind).
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/loopcast/loopcast/pkg/media"
)

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// Probe extracts MediaInfo from the first video and first audio stream
// of the file. A file missing either stream is a fatal open error.
func Probe(ctx context.Context, bin string, file string) (media.MediaInfo, error) {
	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		file,
	).Output()
	if err != nil {
		return media.MediaInfo{}, fmt.Errorf("ffprobe %v: %w", file, err)
	}
	return parseInfo(out)
}

func parseInfo(data []byte) (media.MediaInfo, error) {
	var probed probeOutput
	if err := json.Unmarshal(data, &probed); err != nil {
		return media.MediaInfo{}, fmt.Errorf("ffprobe output: %w", err)
	}
	var info media.MediaInfo
	var hasVideo, hasAudio bool
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "video":
			if hasVideo {
				continue
			}
			fps, err := parseRate(s.AvgFrameRate)
			if err != nil || fps <= 0 {
				fps, err = parseRate(s.RFrameRate)
				if err != nil {
					return media.MediaInfo{}, fmt.Errorf("video frame rate: %w", err)
				}
			}
			info.VideoWidth, info.VideoHeight, info.VideoFPS = s.Width, s.Height, fps
			hasVideo = true
		case "audio":
			if hasAudio {
				continue
			}
			rate, err := strconv.Atoi(s.SampleRate)
			if err != nil {
				return media.MediaInfo{}, fmt.Errorf("audio sample rate %q: %w", s.SampleRate, err)
			}
			info.AudioSampleRate, info.AudioChannels = rate, s.Channels
			hasAudio = true
		}
	}
	if !hasVideo {
		return media.MediaInfo{}, fmt.Errorf("no decodable video stream")
	}
	if !hasAudio {
		return media.MediaInfo{}, fmt.Errorf("no decodable audio stream")
	}
	if err := info.Validate(); err != nil {
		return media.MediaInfo{}, err
	}
	return info, nil
}

// parseRate parses ffprobe rational rates of the form "30000/1001" or "25".
func parseRate(r string) (float64, error) {
	if r == "" || r == "0/0" {
		return 0, fmt.Errorf("empty rate")
	}
	if num, den, ok := strings.Cut(r, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in %q", r)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(r, 64)
}
