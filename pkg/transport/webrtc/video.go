package webrtc

import (
	"bytes"
	"image"
	"time"

	"github.com/gen2brain/x264-go"
	"github.com/pion/webrtc/v3"
	rtcmedia "github.com/pion/webrtc/v3/pkg/media"

	"github.com/loopcast/loopcast/pkg/config"
	"github.com/loopcast/loopcast/pkg/media"
)

// videoSource encodes RGBA frames to H264 and writes one sample per
// encoded access unit. The encoder flushes annex-b NALs into buf on
// every Encode call.
type videoSource struct {
	enc   *x264.Encoder
	buf   *bytes.Buffer
	track *webrtc.TrackLocalStaticSample
	dur   time.Duration
}

func newVideoSource(track *webrtc.TrackLocalStaticSample, width, height, fps int, conf config.Video) (*videoSource, error) {
	buf := bytes.NewBuffer(make([]byte, 0, width*height))
	enc, err := x264.NewEncoder(buf, &x264.Options{
		Width:     width,
		Height:    height,
		FrameRate: fps,
		Tune:      conf.Tune,
		Preset:    conf.Preset,
		Profile:   conf.Profile,
	})
	if err != nil {
		return nil, err
	}
	return &videoSource{
		enc:   enc,
		buf:   buf,
		track: track,
		dur:   time.Second / time.Duration(fps),
	}, nil
}

func (v *videoSource) CaptureFrame(frame media.VideoFrame) error {
	img := &image.RGBA{
		Pix:    frame.Data,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	if err := v.enc.Encode(img); err != nil {
		return err
	}
	return v.drain()
}

// drain writes whatever the encoder has produced so far.
// The encoder may hold frames back, so an empty buffer is not an error.
func (v *videoSource) drain() error {
	if v.buf.Len() == 0 {
		return nil
	}
	data := make([]byte, v.buf.Len())
	copy(data, v.buf.Bytes())
	v.buf.Reset()
	return v.track.WriteSample(rtcmedia.Sample{Data: data, Duration: v.dur})
}

func (v *videoSource) Close() error {
	if err := v.enc.Flush(); err != nil {
		return err
	}
	if err := v.drain(); err != nil {
		return err
	}
	return v.enc.Close()
}
