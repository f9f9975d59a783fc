// Package session wires one looping source to one publisher: it runs
// the two push loops feeding the synchronizer and owns the teardown
// order when either loop fails or the context is cancelled.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/loopcast/loopcast/pkg/avsync"
	"github.com/loopcast/loopcast/pkg/config"
	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
	"github.com/loopcast/loopcast/pkg/monitoring"
	"github.com/loopcast/loopcast/pkg/streamer"
	"github.com/loopcast/loopcast/pkg/transport"

	"golang.org/x/sync/errgroup"
)

// Synchronizer is the pacing layer between the push loops and the
// publisher's sources.
type Synchronizer interface {
	PushVideo(media.VideoFrame) error
	PushAudio(media.AudioFrame) error
	WaitForPlayout()
	Close() error
}

type Session struct {
	id  string
	src *streamer.Streamer
	pub transport.Publisher
	log *logger.Logger

	// replaceable for tests
	newSync func(v transport.VideoSource, a transport.AudioSource, fps float64) Synchronizer
}

func New(src *streamer.Streamer, pub transport.Publisher, conf config.Sync, log *logger.Logger) *Session {
	id := uuid.Must(uuid.NewV4()).String()
	s := &Session{
		id:  id,
		src: src,
		pub: pub,
		log: log.Wrap(log.With().Str("sid", id[:8])),
	}
	s.newSync = func(v transport.VideoSource, a transport.AudioSource, fps float64) Synchronizer {
		return avsync.New(v, a, fps, conf.QueueSizeMs, s.log)
	}
	return s
}

// Run publishes the source, then pushes frames until ctx is cancelled
// or one of the loops fails. Teardown is ordered: the streamer stops
// first so the loops unwind, the synchronizer plays out and closes
// second, the publisher closes last.
func (s *Session) Run(ctx context.Context) error {
	info := s.src.Info()
	vsrc, asrc, err := s.pub.Publish(info)
	if err != nil {
		// a stacked publisher may have opened some members before the
		// failing one, release them
		var result *multierror.Error
		result = multierror.Append(result, fmt.Errorf("session: publish: %w", err))
		if cerr := s.pub.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		return result.ErrorOrNil()
	}
	av := s.newSync(vsrc, asrc, info.VideoFPS)
	s.log.Info().Msgf("session started, %vx%v@%.2f", info.VideoWidth, info.VideoHeight, info.VideoFPS)

	var stopErr error
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { stopErr = s.src.Stop() }) }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.guard("video", func() error { return s.pushVideo(av) }))
	g.Go(s.guard("audio", func() error { return s.pushAudio(av) }))
	// a failed loop cancels gctx, which stops the streamer, which in
	// turn unblocks the other loop
	go func() {
		<-gctx.Done()
		stop()
	}()

	pushErr := g.Wait()
	stop()

	var result *multierror.Error
	if pushErr != nil {
		result = multierror.Append(result, pushErr)
	}
	if stopErr != nil {
		result = multierror.Append(result, stopErr)
	}
	s.log.Debug().Msg("waiting for playout")
	av.WaitForPlayout()
	if err := av.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.pub.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.log.Info().Msg("session finished")
	return result.ErrorOrNil()
}

func (s *Session) pushVideo(av Synchronizer) error {
	frames := s.src.VideoFrames()
	for {
		frame, err := frames.Next()
		if err != nil {
			if errors.Is(err, streamer.ErrStopped) {
				return nil
			}
			return err
		}
		if err := av.PushVideo(frame); err != nil {
			if errors.Is(err, avsync.ErrClosed) {
				return nil
			}
			return err
		}
		monitoring.VideoFramesPushed.Inc()
	}
}

func (s *Session) pushAudio(av Synchronizer) error {
	frames := s.src.AudioFrames()
	for {
		frame, err := frames.Next()
		if err != nil {
			if errors.Is(err, streamer.ErrStopped) {
				return nil
			}
			return err
		}
		if err := av.PushAudio(frame); err != nil {
			if errors.Is(err, avsync.ErrClosed) {
				return nil
			}
			return err
		}
		monitoring.AudioFramesPushed.Inc()
	}
}

// guard logs a loop failure where it happens, so one stream's error is
// visible even while the other keeps the session alive for a moment.
func (s *Session) guard(name string, fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			monitoring.PushLoopFailures.WithLabelValues(name).Inc()
			s.log.Error().Err(err).Msgf("%v push loop failed", name)
			return fmt.Errorf("%v push loop: %w", name, err)
		}
		s.log.Debug().Msgf("%v push loop done", name)
		return nil
	}
}
