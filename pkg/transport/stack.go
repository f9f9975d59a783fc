package transport

import (
	"github.com/hashicorp/go-multierror"

	"github.com/loopcast/loopcast/pkg/media"
)

// Stack fans released frames out to every given publisher. With no
// publishers the frames are still paced, then dropped, which makes a
// dry run without any destination possible.
func Stack(pubs ...Publisher) Publisher { return &stack{pubs: pubs} }

type stack struct {
	pubs   []Publisher
	videos []VideoSource
	audios []AudioSource
}

func (s *stack) Publish(info media.MediaInfo) (VideoSource, AudioSource, error) {
	for _, p := range s.pubs {
		v, a, err := p.Publish(info)
		if err != nil {
			return nil, nil, err
		}
		s.videos = append(s.videos, v)
		s.audios = append(s.audios, a)
	}
	return stackVideo{s}, stackAudio{s}, nil
}

// Close closes every publisher even when one of them fails.
func (s *stack) Close() error {
	var result *multierror.Error
	for _, p := range s.pubs {
		result = multierror.Append(result, p.Close())
	}
	return result.ErrorOrNil()
}

type stackVideo struct{ s *stack }

// CaptureFrame delivers the frame everywhere before reporting errors.
func (v stackVideo) CaptureFrame(frame media.VideoFrame) error {
	var result *multierror.Error
	for _, dst := range v.s.videos {
		result = multierror.Append(result, dst.CaptureFrame(frame))
	}
	return result.ErrorOrNil()
}

type stackAudio struct{ s *stack }

func (a stackAudio) CaptureFrame(frame media.AudioFrame) error {
	var result *multierror.Error
	for _, dst := range a.s.audios {
		result = multierror.Append(result, dst.CaptureFrame(frame))
	}
	return result.ErrorOrNil()
}
