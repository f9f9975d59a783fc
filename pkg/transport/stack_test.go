package transport

import (
	"errors"
	"testing"

	"github.com/loopcast/loopcast/pkg/media"
)

type countSource struct {
	frames int
	err    error
}

func (c *countSource) capture() error {
	if c.err != nil {
		return c.err
	}
	c.frames++
	return nil
}

type stubPublisher struct {
	video  countSource
	audio  countSource
	closed bool
}

func (p *stubPublisher) Publish(media.MediaInfo) (VideoSource, AudioSource, error) {
	return stubVideo{&p.video}, stubAudio{&p.audio}, nil
}

func (p *stubPublisher) Close() error {
	p.closed = true
	return nil
}

type stubVideo struct{ c *countSource }

func (v stubVideo) CaptureFrame(media.VideoFrame) error { return v.c.capture() }

type stubAudio struct{ c *countSource }

func (a stubAudio) CaptureFrame(media.AudioFrame) error { return a.c.capture() }

func TestStackFansOut(t *testing.T) {
	p1, p2 := &stubPublisher{}, &stubPublisher{}
	s := Stack(p1, p2)
	v, a, err := s.Publish(media.MediaInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.CaptureFrame(media.VideoFrame{}); err != nil {
		t.Fatal(err)
	}
	if err := a.CaptureFrame(media.AudioFrame{}); err != nil {
		t.Fatal(err)
	}
	if p1.video.frames != 1 || p2.video.frames != 1 || p1.audio.frames != 1 || p2.audio.frames != 1 {
		t.Error("frame not delivered to every publisher")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !p1.closed || !p2.closed {
		t.Error("publisher left open")
	}
}

func TestStackKeepsDeliveringOnError(t *testing.T) {
	bad, good := &stubPublisher{}, &stubPublisher{}
	bad.video.err = errors.New("broken sink")
	s := Stack(bad, good)
	v, _, err := s.Publish(media.MediaInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.CaptureFrame(media.VideoFrame{}); err == nil {
		t.Error("sink error swallowed")
	}
	if good.video.frames != 1 {
		t.Error("healthy sink skipped after the broken one")
	}
}

func TestEmptyStackDiscards(t *testing.T) {
	s := Stack()
	v, a, err := s.Publish(media.MediaInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.CaptureFrame(media.VideoFrame{}); err != nil {
		t.Error(err)
	}
	if err := a.CaptureFrame(media.AudioFrame{}); err != nil {
		t.Error(err)
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}
