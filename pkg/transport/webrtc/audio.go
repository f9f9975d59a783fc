package webrtc

import (
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
	rtcmedia "github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/loopcast/loopcast/pkg/media"
)

const opusRate = 48000

// audioSource regroups the decoder's variable-size PCM frames into
// fixed encoder frames, stretching the sample rate to 48kHz when the
// source differs.
type audioSource struct {
	enc   *opus.Encoder
	track *webrtc.TrackLocalStaticSample

	buf      media.Buffer
	rate     int
	channels int
	frameDur time.Duration
	// total samples of one output frame, 0 when no resampling is needed
	resampleSize int
}

func newAudioSource(track *webrtc.TrackLocalStaticSample, rate, channels, frameMs int) (*audioSource, error) {
	enc, err := opus.NewEncoder(
		opusRate,
		channels,
		// be aware that low delay option is not optimized for voice
		opus.AppRestrictedLowdelay,
	)
	if err != nil {
		return nil, err
	}
	_ = enc.SetMaxBandwidth(opus.Fullband)
	_ = enc.SetBitrateToAuto()
	_ = enc.SetComplexity(10)

	s := &audioSource{
		enc:      enc,
		track:    track,
		buf:      media.NewBuffer(rate * frameMs / 1000 * channels),
		rate:     rate,
		channels: channels,
		frameDur: time.Duration(frameMs) * time.Millisecond,
	}
	if rate != opusRate {
		s.resampleSize = opusRate * frameMs / 1000 * channels
	}
	return s, nil
}

func (s *audioSource) CaptureFrame(frame media.AudioFrame) error {
	if frame.SampleRate != s.rate || frame.Channels != s.channels {
		return fmt.Errorf("webrtc: audio frame %dHz ch=%d does not match track %dHz ch=%d",
			frame.SampleRate, frame.Channels, s.rate, s.channels)
	}
	var err error
	s.buf.Write(frame.Samples(), func(pcm media.Samples) {
		if err != nil {
			return
		}
		err = s.encode(pcm)
	})
	return err
}

func (s *audioSource) encode(pcm media.Samples) error {
	if s.resampleSize > 0 {
		pcm = media.ResampleStretch(pcm, s.resampleSize, s.channels)
	}
	data := make([]byte, 1024)
	n, err := s.enc.Encode(pcm, data)
	if err != nil {
		return err
	}
	return s.track.WriteSample(rtcmedia.Sample{Data: data[:n], Duration: s.frameDur})
}
