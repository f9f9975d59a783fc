package ffmpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"

	"github.com/loopcast/loopcast/pkg/media"
)

// ErrClosed is returned by Next and Rewind after the context was closed.
var ErrClosed = fmt.Errorf("ffmpeg: decode context closed")

// proc is one running ffmpeg decode process with its stdout pipe.
// A decode context owns at most one proc at a time; Rewind replaces it,
// which is the seek-to-zero operation for a pipe-based decoder.
type proc struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr bytes.Buffer
}

func startProc(bin string, args []string) (*proc, error) {
	p := &proc{cmd: exec.Command(bin, args...)}
	out, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	p.out = out
	p.cmd.Stderr = &p.stderr
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%v: %w", bin, err)
	}
	return p, nil
}

// finish reaps the process after its stdout hit EOF. A non-zero exit
// mid-stream is a decode error, not a normal end of the source.
func (p *proc) finish() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("decoder exited: %w [%s]", err, bytes.TrimSpace(p.stderr.Bytes()))
	}
	return nil
}

func (p *proc) kill() {
	_ = p.out.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
}

// ctxState holds the current process of a decode context. Next copies the
// pointer out and reads the pipe without the lock, so Close can kill the
// process from another goroutine and unblock an in-flight read.
type ctxState struct {
	mu     sync.Mutex
	p      *proc
	closed bool
}

func (s *ctxState) current() (*proc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, s.closed
}

// drop detaches p if it is still the current process.
func (s *ctxState) drop(p *proc) {
	s.mu.Lock()
	if s.p == p {
		s.p = nil
	}
	s.mu.Unlock()
}

func (s *ctxState) replace(p *proc) error {
	s.mu.Lock()
	old := s.p
	if s.closed {
		s.mu.Unlock()
		if p != nil {
			p.kill()
		}
		return ErrClosed
	}
	s.p = p
	s.mu.Unlock()
	if old != nil {
		old.kill()
	}
	return nil
}

func (s *ctxState) close() {
	s.mu.Lock()
	p := s.p
	s.p = nil
	s.closed = true
	s.mu.Unlock()
	if p != nil {
		p.kill()
	}
}

// VideoContext decodes the file's video stream into RGB24 pictures.
// It starts idle: the first Next returns io.EOF and the caller rewinds.
type VideoContext struct {
	bin  string
	file string
	w, h int

	state ctxState
}

func NewVideoContext(bin, file string, info media.MediaInfo) *VideoContext {
	return &VideoContext{bin: bin, file: file, w: info.VideoWidth, h: info.VideoHeight}
}

// Rewind restarts decoding from time zero.
func (c *VideoContext) Rewind() error {
	p, err := startProc(c.bin, []string{
		"-v", "error",
		"-i", c.file,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	})
	if err != nil {
		return err
	}
	return c.state.replace(p)
}

// Next reads one decoded picture. io.EOF marks the clean end of the
// stream; any other error is a per-unit decode failure.
func (c *VideoContext) Next() (media.RawVideoFrame, error) {
	p, closed := c.state.current()
	if closed {
		return media.RawVideoFrame{}, ErrClosed
	}
	if p == nil {
		return media.RawVideoFrame{}, io.EOF
	}
	pix := make([]byte, c.w*c.h*3)
	n, err := io.ReadFull(p.out, pix)
	switch {
	case err == io.EOF:
		c.state.drop(p)
		if err := p.finish(); err != nil {
			return media.RawVideoFrame{}, err
		}
		return media.RawVideoFrame{}, io.EOF
	case err == io.ErrUnexpectedEOF:
		return media.RawVideoFrame{}, fmt.Errorf("truncated video frame [%v of %v bytes]", n, len(pix))
	case err != nil:
		return media.RawVideoFrame{}, err
	}
	return media.RawVideoFrame{Width: c.w, Height: c.h, Pix: pix}, nil
}

func (c *VideoContext) Close() error {
	c.state.close()
	return nil
}

// AudioContext decodes the file's audio stream into fixed-size planar
// float32 units of frameSamples samples per channel. The unit at the end
// of the stream may be shorter.
type AudioContext struct {
	bin          string
	file         string
	rate         int
	channels     int
	frameSamples int

	state ctxState
}

func NewAudioContext(bin, file string, info media.MediaInfo, frameSamples int) *AudioContext {
	return &AudioContext{
		bin:          bin,
		file:         file,
		rate:         info.AudioSampleRate,
		channels:     info.AudioChannels,
		frameSamples: frameSamples,
	}
}

// Rewind restarts decoding from time zero.
func (c *AudioContext) Rewind() error {
	p, err := startProc(c.bin, []string{
		"-v", "error",
		"-i", c.file,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"pipe:1",
	})
	if err != nil {
		return err
	}
	return c.state.replace(p)
}

// Next reads one decoded audio unit. io.EOF marks the clean end of the
// stream; any other error is a per-unit decode failure.
func (c *AudioContext) Next() (media.RawAudioFrame, error) {
	p, closed := c.state.current()
	if closed {
		return media.RawAudioFrame{}, ErrClosed
	}
	if p == nil {
		return media.RawAudioFrame{}, io.EOF
	}
	sampleBytes := c.channels * 4
	buf := make([]byte, c.frameSamples*sampleBytes)
	n, err := io.ReadFull(p.out, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		c.state.drop(p)
		if ferr := p.finish(); ferr != nil {
			return media.RawAudioFrame{}, ferr
		}
		if n == 0 {
			return media.RawAudioFrame{}, io.EOF
		}
		if n%sampleBytes != 0 {
			return media.RawAudioFrame{}, fmt.Errorf("truncated audio sample [%v bytes, %v per sample]", n, sampleBytes)
		}
		return c.deinterleave(buf[:n]), nil
	}
	if err != nil {
		return media.RawAudioFrame{}, err
	}
	return c.deinterleave(buf), nil
}

// deinterleave splits the pipe's interleaved f32le data back into the
// per-channel planes the converter expects.
func (c *AudioContext) deinterleave(buf []byte) media.RawAudioFrame {
	samples := len(buf) / (c.channels * 4)
	planes := make([][]float32, c.channels)
	for ch := range planes {
		planes[ch] = make([]float32, samples)
	}
	for s := 0; s < samples; s++ {
		for ch := 0; ch < c.channels; ch++ {
			bits := binary.LittleEndian.Uint32(buf[(s*c.channels+ch)*4:])
			planes[ch][s] = math.Float32frombits(bits)
		}
	}
	return media.RawAudioFrame{SampleRate: c.rate, Planes: planes}
}

func (c *AudioContext) Close() error {
	c.state.close()
	return nil
}
