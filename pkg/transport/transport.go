// Package transport is the boundary between the pacing synchronizer and
// whatever carries frames further: a WebRTC peer, an on-disk recording.
package transport

import "github.com/loopcast/loopcast/pkg/media"

// VideoSource accepts released video frames for delivery.
type VideoSource interface {
	CaptureFrame(media.VideoFrame) error
}

// AudioSource accepts released audio frames for delivery.
type AudioSource interface {
	CaptureFrame(media.AudioFrame) error
}

// Publisher owns the downstream tracks. Publish sizes them to the source's
// MediaInfo and must complete before the first frame is pushed.
type Publisher interface {
	Publish(info media.MediaInfo) (VideoSource, AudioSource, error)
	Close() error
}
