// Package recorder is the on-disk transport: released video frames are
// saved as raw RGBA files and audio as a WAV file, enough to remux the
// session with ffmpeg afterwards.
package recorder

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
	"github.com/loopcast/loopcast/pkg/os"
	"github.com/loopcast/loopcast/pkg/transport"
)

type Options struct {
	Dir  string
	Name string
}

// naming regexp
var (
	reDate = regexp.MustCompile(`%date:(.*?)%`)
	reRand = regexp.MustCompile(`%rand:(\d+)%`)
)

// Recording writes one session into a dedicated directory.
//
// The result can be muxed back into a file:
//
//	ffmpeg -f rawvideo -pix_fmt rgba -s WxH -r FPS -i video.rgba \
//	       -i audio.wav -pix_fmt yuv420p out.mp4
type Recording struct {
	sync.Mutex

	dir  string
	opts Options
	log  *logger.Logger

	audio *wavStream
	video *rawStream
}

func New(opts Options, log *logger.Logger) (*Recording, error) {
	savePath, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.CheckCreateDir(savePath); err != nil {
		return nil, err
	}
	return &Recording{dir: savePath, opts: opts, log: log}, nil
}

// Publish creates the session directory and both sink files sized to the
// source streams. It must be called once, before any frame is captured.
func (r *Recording) Publish(info media.MediaInfo) (transport.VideoSource, transport.AudioSource, error) {
	r.Lock()
	defer r.Unlock()
	if r.audio != nil {
		return nil, nil, fmt.Errorf("recorder: already publishing")
	}

	path := filepath.Join(r.dir, parseName(r.opts.Name))
	if err := os.CheckCreateDir(path); err != nil {
		return nil, nil, err
	}
	r.log.Info().Msgf("recording to %v", path)

	audio, err := newWavStream(path, info.AudioSampleRate, info.AudioChannels)
	if err != nil {
		return nil, nil, err
	}
	video, err := newRawStream(path)
	if err != nil {
		_ = audio.Close()
		return nil, nil, err
	}
	r.audio = audio
	r.video = video
	return video, audio, nil
}

// Close finalizes both sinks. Each close runs even when the other fails.
func (r *Recording) Close() error {
	r.Lock()
	defer r.Unlock()
	var result *multierror.Error
	if r.audio != nil {
		result = multierror.Append(result, r.audio.Close())
		r.audio = nil
	}
	if r.video != nil {
		result = multierror.Append(result, r.video.Close())
		r.video = nil
	}
	return result.ErrorOrNil()
}

func parseName(name string) (out string) {
	if d := reDate.FindStringSubmatch(name); d != nil {
		out = reDate.ReplaceAllString(name, time.Now().Format(d[1]))
	} else {
		out = name
	}
	if rnd := reRand.FindStringSubmatch(out); rnd != nil {
		out = reRand.ReplaceAllString(out, random(rnd[1]))
	}
	return
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func random(num string) string {
	n, err := strconv.Atoi(num)
	if err != nil {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Int63()%int64(len(letterBytes))]
	}
	return string(b)
}
