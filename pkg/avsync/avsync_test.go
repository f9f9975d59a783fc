package avsync

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
)

type mockVideoSource struct {
	mu     sync.Mutex
	frames []media.VideoFrame
	err    error
}

func (m *mockVideoSource) CaptureFrame(f media.VideoFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockVideoSource) captured() []media.VideoFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.VideoFrame(nil), m.frames...)
}

type mockAudioSource struct {
	mu     sync.Mutex
	frames []media.AudioFrame
}

func (m *mockAudioSource) CaptureFrame(f media.AudioFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockAudioSource) captured() []media.AudioFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.AudioFrame(nil), m.frames...)
}

func videoFrame(seq byte) media.VideoFrame {
	return media.VideoFrame{Width: 1, Height: 1, Data: []byte{seq, 0, 0, 0xff}}
}

// audioFrame is 10ms of 8kHz mono silence tagged with seq.
func audioFrame(seq byte) media.AudioFrame {
	data := make([]byte, 80*2)
	data[0] = seq
	return media.AudioFrame{SampleRate: 8000, Channels: 1, SamplesPerChannel: 80, Data: data}
}

func TestPlayoutDrainsEverything(t *testing.T) {
	vsrc, asrc := &mockVideoSource{}, &mockAudioSource{}
	s := New(vsrc, asrc, 100, 1000, logger.Default())
	defer s.Close()

	const n = 5
	for i := 0; i < n; i++ {
		if err := s.PushVideo(videoFrame(byte(i))); err != nil {
			t.Fatal(err)
		}
		if err := s.PushAudio(audioFrame(byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	s.WaitForPlayout()

	video, audio := vsrc.captured(), asrc.captured()
	if len(video) != n || len(audio) != n {
		t.Fatalf("released %v video, %v audio frames, want %v each", len(video), len(audio), n)
	}
	for i := 0; i < n; i++ {
		if video[i].Data[0] != byte(i) {
			t.Errorf("video release %v out of order: seq %v", i, video[i].Data[0])
		}
		if audio[i].Data[0] != byte(i) {
			t.Errorf("audio release %v out of order: seq %v", i, audio[i].Data[0])
		}
	}
}

func TestAudioBackpressure(t *testing.T) {
	vsrc, asrc := &mockVideoSource{}, &mockAudioSource{}
	// 25ms budget, 10ms frames: the third push must wait for playout
	s := New(vsrc, asrc, 100, 25, logger.Default())
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 6; i++ {
			if err := s.PushAudio(audioFrame(byte(i))); err != nil {
				t.Errorf("push %v: %v", i, err)
				break
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pushes did not resolve under backpressure")
	}
	s.WaitForPlayout()
	if got := len(asrc.captured()); got != 6 {
		t.Errorf("released %v audio frames, want 6", got)
	}
}

func TestPushAfterClose(t *testing.T) {
	s := New(&mockVideoSource{}, &mockAudioSource{}, 100, 1000, logger.Default())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.PushVideo(videoFrame(0)); !errors.Is(err, ErrClosed) {
		t.Errorf("PushVideo after close = %v, want ErrClosed", err)
	}
	if err := s.PushAudio(audioFrame(0)); !errors.Is(err, ErrClosed) {
		t.Errorf("PushAudio after close = %v, want ErrClosed", err)
	}
	// idempotent
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

// Rejection after Close must hold on every call, not just the first:
// the video queue has free capacity once the playout loops exit, so a
// racy gate would let some pushes land and leak pending counts that
// WaitForPlayout then waits on forever.
func TestPushAfterCloseAlwaysRejects(t *testing.T) {
	s := New(&mockVideoSource{}, &mockAudioSource{}, 100, 1000, logger.Default())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		if err := s.PushVideo(videoFrame(byte(i))); !errors.Is(err, ErrClosed) {
			t.Fatalf("PushVideo %v after close = %v, want ErrClosed", i, err)
		}
		if err := s.PushAudio(audioFrame(byte(i))); !errors.Is(err, ErrClosed) {
			t.Fatalf("PushAudio %v after close = %v, want ErrClosed", i, err)
		}
	}
	done := make(chan struct{})
	go func() { s.WaitForPlayout(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForPlayout hangs on rejected pushes")
	}
}

func TestReleaseErrorDoesNotHangPlayout(t *testing.T) {
	vsrc, asrc := &mockVideoSource{err: errors.New("track gone")}, &mockAudioSource{}
	s := New(vsrc, asrc, 100, 1000, logger.Default())

	for i := 0; i < 3; i++ {
		if err := s.PushVideo(videoFrame(byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	s.WaitForPlayout()
	if err := s.Close(); err == nil {
		t.Error("Close() should report the recorded release error")
	}
}

func TestCloseDiscardsUnreleased(t *testing.T) {
	vsrc, asrc := &mockVideoSource{}, &mockAudioSource{}
	// 2 fps: nothing gets released within the test window
	s := New(vsrc, asrc, 2, 10000, logger.Default())

	for i := 0; i < 3; i++ {
		if err := s.PushVideo(videoFrame(byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// WaitForPlayout must not hang on discarded frames
	done := make(chan struct{})
	go func() { s.WaitForPlayout(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForPlayout hangs after Close discarded the queue")
	}
}
