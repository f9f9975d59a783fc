// Package avsync paces two independently produced frame streams against
// one playout clock. Producers push converted frames; the synchronizer
// buffers up to a bounded look-ahead and releases video at the nominal
// frame rate and audio by each frame's own duration, which keeps the two
// streams aligned without any cross-stream signaling from the producers.
package avsync

import (
	"errors"
	"sync"
	"time"

	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
	"github.com/loopcast/loopcast/pkg/monitoring"
	"github.com/loopcast/loopcast/pkg/transport"
)

// ErrClosed is returned by the push methods after Close.
var ErrClosed = errors.New("avsync: closed")

type Synchronizer struct {
	log  *logger.Logger
	fps  float64
	vsrc transport.VideoSource
	asrc transport.AudioSource

	video *videoQueue
	audio *audioQueue

	// pushed but not yet released frames
	pending sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once
	loops     sync.WaitGroup

	mu  sync.Mutex
	err error
}

// New creates a synchronizer releasing frames into the two sources.
// queueSizeMs bounds the look-ahead on both streams, expressed in
// milliseconds of media.
func New(vsrc transport.VideoSource, asrc transport.AudioSource, fps float64, queueSizeMs int, log *logger.Logger) *Synchronizer {
	lookAhead := time.Duration(queueSizeMs) * time.Millisecond
	videoCap := int(fps * float64(queueSizeMs) / 1000)
	if videoCap < 1 {
		videoCap = 1
	}
	s := &Synchronizer{
		log:    log,
		fps:    fps,
		vsrc:   vsrc,
		asrc:   asrc,
		video:  newVideoQueue(videoCap),
		audio:  newAudioQueue(lookAhead),
		closed: make(chan struct{}),
	}
	s.loops.Add(2)
	go s.playVideo()
	go s.playAudio()
	return s
}

// PushVideo hands one video frame over, blocking while the look-ahead
// queue is full. Frames are released in push order.
func (s *Synchronizer) PushVideo(frame media.VideoFrame) error {
	s.pending.Add(1)
	if err := s.video.push(frame); err != nil {
		s.pending.Done()
		return err
	}
	return nil
}

// PushAudio hands one audio frame over, blocking while the buffered
// audio exceeds the look-ahead budget. Frames are released in push order.
func (s *Synchronizer) PushAudio(frame media.AudioFrame) error {
	s.pending.Add(1)
	if err := s.audio.push(frame); err != nil {
		s.pending.Done()
		return err
	}
	return nil
}

// WaitForPlayout blocks until every frame pushed so far has been released
// downstream. Call it after the producers have stopped pushing.
func (s *Synchronizer) WaitForPlayout() {
	s.pending.Wait()
}

// Close stops the playout loops and discards whatever is still buffered.
// Idempotent. An ordinary shutdown calls WaitForPlayout first so there is
// nothing left to discard.
func (s *Synchronizer) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.video.close()
		s.audio.close()
		s.loops.Wait()
		for range s.video.drain() {
			s.pending.Done()
		}
		for range s.audio.drain() {
			s.pending.Done()
		}
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Synchronizer) playVideo() {
	defer s.loops.Done()
	interval := time.Duration(float64(time.Second) / s.fps)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-tick.C:
			frame, ok := s.video.tryPop()
			if !ok {
				// producer is behind, release on the next tick
				continue
			}
			if err := s.vsrc.CaptureFrame(frame); err != nil {
				s.fail("video", err)
			}
			monitoring.FramesReleased.WithLabelValues("video").Inc()
			monitoring.LookaheadDepth.WithLabelValues("video").Set(float64(s.video.len()))
			s.pending.Done()
		}
	}
}

func (s *Synchronizer) playAudio() {
	defer s.loops.Done()
	next := time.Now()
	for {
		frame, ok := s.audio.pop()
		if !ok {
			return
		}
		if err := s.asrc.CaptureFrame(frame); err != nil {
			s.fail("audio", err)
		}
		monitoring.FramesReleased.WithLabelValues("audio").Inc()
		monitoring.LookaheadDepth.WithLabelValues("audio").Set(float64(s.audio.len().Milliseconds()))
		s.pending.Done()

		next = next.Add(frame.Duration())
		now := time.Now()
		if now.After(next) {
			next = now
			continue
		}
		select {
		case <-s.closed:
			return
		case <-time.After(next.Sub(now)):
		}
	}
}

// fail records the first release error; later frames still drain so that
// WaitForPlayout cannot hang on a broken source.
func (s *Synchronizer) fail(stream string, err error) {
	s.log.Error().Err(err).Msgf("%v release failed", stream)
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// videoQueue is a count-bounded FIFO. The closed state is checked under
// the same lock that guards the frames, so a push racing Close either
// blocks the frame out with ErrClosed or lands before the final drain,
// never after it.
type videoQueue struct {
	mu      sync.Mutex
	notFull *sync.Cond

	frames []media.VideoFrame
	max    int
	closed bool
}

func newVideoQueue(max int) *videoQueue {
	q := &videoQueue{max: max}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *videoQueue) push(frame media.VideoFrame) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) >= q.max && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.frames = append(q.frames, frame)
	return nil
}

// tryPop never blocks; the playout ticker is the thing that waits.
func (q *videoQueue) tryPop() (media.VideoFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return media.VideoFrame{}, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return frame, true
}

func (q *videoQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *videoQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notFull.Broadcast()
}

func (q *videoQueue) drain() []media.VideoFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	left := q.frames
	q.frames = nil
	return left
}

// audioQueue is a FIFO bounded by the total duration of buffered frames
// rather than their count, since decoded audio units vary in size.
type audioQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	frames   []media.AudioFrame
	buffered time.Duration
	max      time.Duration
	closed   bool
}

func newAudioQueue(max time.Duration) *audioQueue {
	q := &audioQueue{max: max}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *audioQueue) push(frame media.AudioFrame) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.buffered >= q.max && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.frames = append(q.frames, frame)
	q.buffered += frame.Duration()
	q.notEmpty.Signal()
	return nil
}

// pop blocks until a frame is buffered or the queue is closed.
func (q *audioQueue) pop() (media.AudioFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.frames) == 0 {
		return media.AudioFrame{}, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.buffered -= frame.Duration()
	q.notFull.Signal()
	return frame, true
}

func (q *audioQueue) len() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buffered
}

func (q *audioQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *audioQueue) drain() []media.AudioFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	left := q.frames
	q.frames = nil
	q.buffered = 0
	return left
}
