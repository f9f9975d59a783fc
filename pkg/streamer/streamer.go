// Package streamer turns a finite media file into two endless frame
// streams: it decodes the file's video and audio through two independent
// decode contexts and rewinds each context to time zero whenever it runs
// out, until stopped.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/loopcast/loopcast/pkg/config"
	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
	"github.com/loopcast/loopcast/pkg/media/ffmpeg"
	"github.com/loopcast/loopcast/pkg/monitoring"
)

// ErrStopped is returned by the frame streams once Stop was requested.
var ErrStopped = errors.New("streamer: stopped")

// VideoContext is a seekable cursor over the source's video stream.
// Next returns io.EOF at the clean end of the stream and decode errors
// otherwise; Rewind restarts decoding from time zero.
type VideoContext interface {
	Rewind() error
	Next() (media.RawVideoFrame, error)
	Close() error
}

// AudioContext is the audio counterpart of VideoContext.
type AudioContext interface {
	Rewind() error
	Next() (media.RawAudioFrame, error)
	Close() error
}

// Streamer owns the two decode contexts and the shared stop flag.
// Each context is consumed by exactly one stream, so no lock guards them;
// the flag is the only state both streams read.
type Streamer struct {
	info  media.MediaInfo
	video VideoContext
	audio AudioContext

	stopped atomic.Bool
	stop    sync.Once
	log     *logger.Logger
}

// New opens the media file twice, one decode context per stream kind, so
// each can be rewound and read independently. A file without a usable
// video or audio stream fails here, before anything is streamed.
func New(ctx context.Context, conf config.Streamer, log *logger.Logger) (*Streamer, error) {
	if conf.MediaFile == "" {
		return nil, fmt.Errorf("streamer: no media file configured")
	}
	info, err := ffmpeg.Probe(ctx, conf.FfprobePath, conf.MediaFile)
	if err != nil {
		return nil, fmt.Errorf("streamer: open %v: %w", conf.MediaFile, err)
	}
	return With(
		info,
		ffmpeg.NewVideoContext(conf.FfmpegPath, conf.MediaFile, info),
		ffmpeg.NewAudioContext(conf.FfmpegPath, conf.MediaFile, info, conf.AudioFrameSamples),
		log,
	), nil
}

// With assembles a streamer from already opened decode contexts.
func With(info media.MediaInfo, video VideoContext, audio AudioContext, log *logger.Logger) *Streamer {
	return &Streamer{info: info, video: video, audio: audio, log: log}
}

func (s *Streamer) Info() media.MediaInfo { return s.info }

// VideoFrames returns the endless converted video stream.
// There must be at most one consumer.
func (s *Streamer) VideoFrames() *VideoStream { return &VideoStream{s: s} }

// AudioFrames returns the endless converted audio stream.
// There must be at most one consumer.
func (s *Streamer) AudioFrames() *AudioStream { return &AudioStream{s: s} }

// Stop sets the stop flag and then closes both decode contexts.
// The order matters: a stream blocked in a decode observes the flag and
// returns ErrStopped instead of touching the closed context again.
// Safe to call more than once and while the streams are being consumed.
func (s *Streamer) Stop() error {
	var result *multierror.Error
	s.stop.Do(func() {
		s.stopped.Store(true)
		result = multierror.Append(result, s.video.Close())
		result = multierror.Append(result, s.audio.Close())
		s.log.Debug().Msg("streamer stopped")
	})
	return result.ErrorOrNil()
}

// VideoStream pulls converted video frames in decode order, forever.
type VideoStream struct {
	s     *Streamer
	loops int
}

// Next yields the next video frame, rewinding the decode context to time
// zero when the source is exhausted. After a loop restart the container's
// first frame may repeat; that is the seek-to-zero semantics of the
// decoder, not a skipped or duplicated unit.
func (st *VideoStream) Next() (media.VideoFrame, error) {
	for {
		if st.s.stopped.Load() {
			return media.VideoFrame{}, ErrStopped
		}
		raw, err := st.s.video.Next()
		if err == io.EOF {
			if err := st.rewind(); err != nil {
				return media.VideoFrame{}, err
			}
			continue
		}
		if err != nil {
			if st.s.stopped.Load() {
				return media.VideoFrame{}, ErrStopped
			}
			return media.VideoFrame{}, fmt.Errorf("video decode: %w", err)
		}
		return media.ToRGBA(raw)
	}
}

func (st *VideoStream) rewind() error {
	if err := st.s.video.Rewind(); err != nil {
		if st.s.stopped.Load() {
			return ErrStopped
		}
		return fmt.Errorf("video rewind: %w", err)
	}
	if st.loops++; st.loops > 1 {
		monitoring.LoopRestarts.WithLabelValues("video").Inc()
		st.s.log.Debug().Int("loop", st.loops).Msg("video loop restart")
	}
	return nil
}

// AudioStream pulls converted audio frames in decode order, forever.
type AudioStream struct {
	s     *Streamer
	loops int
}

// Next yields the next audio frame, rewinding the decode context to time
// zero when the source is exhausted.
func (st *AudioStream) Next() (media.AudioFrame, error) {
	for {
		if st.s.stopped.Load() {
			return media.AudioFrame{}, ErrStopped
		}
		raw, err := st.s.audio.Next()
		if err == io.EOF {
			if err := st.rewind(); err != nil {
				return media.AudioFrame{}, err
			}
			continue
		}
		if err != nil {
			if st.s.stopped.Load() {
				return media.AudioFrame{}, ErrStopped
			}
			return media.AudioFrame{}, fmt.Errorf("audio decode: %w", err)
		}
		return media.ToPCM16(raw)
	}
}

func (st *AudioStream) rewind() error {
	if err := st.s.audio.Rewind(); err != nil {
		if st.s.stopped.Load() {
			return ErrStopped
		}
		return fmt.Errorf("audio rewind: %w", err)
	}
	if st.loops++; st.loops > 1 {
		monitoring.LoopRestarts.WithLabelValues("audio").Inc()
		st.s.log.Debug().Int("loop", st.loops).Msg("audio loop restart")
	}
	return nil
}
