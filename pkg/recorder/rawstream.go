package recorder

import (
	"github.com/loopcast/loopcast/pkg/media"
)

// rawStream appends released RGBA frames into one contiguous file,
// ready for ffmpeg's rawvideo demuxer.
type rawStream struct {
	out *fileStream
}

const videoFile = "video.rgba"

func newRawStream(dir string) (*rawStream, error) {
	out, err := newFileStream(dir, videoFile)
	if err != nil {
		return nil, err
	}
	return &rawStream{out: out}, nil
}

func (p *rawStream) CaptureFrame(frame media.VideoFrame) error {
	return p.out.Write(frame.Data)
}

func (p *rawStream) Close() error { return p.out.Close() }
