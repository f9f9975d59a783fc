package recorder

import (
	"github.com/loopcast/loopcast/pkg/media"
)

type wavStream struct {
	frequency int
	channels  int
	wav       *fileStream
}

const (
	audioFile         = "audio.wav"
	audioFileRIFFSize = 44
)

func newWavStream(dir string, frequency, channels int) (*wavStream, error) {
	wav, err := newFileStream(dir, audioFile)
	if err != nil {
		return nil, err
	}
	// add pad for RIFF
	if err = wav.Write(make([]byte, audioFileRIFFSize)); err != nil {
		return nil, err
	}
	return &wavStream{frequency: frequency, channels: channels, wav: wav}, nil
}

// CaptureFrame appends the frame's interleaved s16le data as-is.
func (w *wavStream) CaptureFrame(frame media.AudioFrame) error {
	return w.wav.Write(frame.Data)
}

func (w *wavStream) Close() (err error) {
	fsize, er := w.wav.Size()
	if er != nil {
		err = er
	}
	if fsize > 0 {
		// write actual RIFF header
		if er := w.wav.WriteAtStart(rIFFWavHeader(uint32(fsize), w.frequency, w.channels)); er != nil {
			err = er
		}
	}
	if er := w.wav.Close(); er != nil {
		err = er
	}
	return
}

// rIFFWavHeader creates RIFF WAV header.
// See: http://soundfile.sapp.org/doc/WaveFormat
func rIFFWavHeader(fSize uint32, fq int, ch int) []byte {
	const (
		bits  = 16
		chunk = 36
	)
	aSize := fSize - audioFileRIFFSize
	bitrate := uint32(fq*ch*bits) >> 3
	size := aSize + chunk
	header := [audioFileRIFFSize]byte{
		'R', 'I', 'F', 'F',
		byte(size & 0xff), byte((size >> 8) & 0xff), byte((size >> 16) & 0xff), byte((size >> 24) & 0xff),
		'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ',
		byte(bits), 0, 0, 0, 1, 0,
		byte(ch), 0,
		byte(fq & 0xff), byte((fq >> 8) & 0xff), byte((fq >> 16) & 0xff), byte((fq >> 24) & 0xff),
		byte(bitrate & 0xff), byte((bitrate >> 8) & 0xff), byte((bitrate >> 16) & 0xff), byte((bitrate >> 24) & 0xff),
		byte(ch * bits >> 3),
		0, 16, 0,
		'd', 'a', 't', 'a',
		byte(aSize & 0xff), byte((aSize >> 8) & 0xff), byte((aSize >> 16) & 0xff), byte((aSize >> 24) & 0xff),
	}
	return header[:]
}
