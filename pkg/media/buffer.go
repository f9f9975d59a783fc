package media

// Buffer is a simple non-thread safe ring buffer for audio samples.
// It should be used for 16bit PCM (LE interleaved) data.
type (
	Buffer struct {
		s  Samples
		wi int
	}
	OnFull  func(s Samples)
	Samples []int16
)

func NewBuffer(numSamples int) Buffer { return Buffer{s: make(Samples, numSamples)} }

// Write fills the buffer with data calling a callback function when
// the internal buffer fills out.
//
// Both on underflow and overflow any previous values in the buffer are
// overwritten and the internal write pointer moves on the length of the
// written data. The callback fires every time the buffer fills out,
// possibly several times for one Write.
func (b *Buffer) Write(s Samples, onFull OnFull) (r int) {
	for r < len(s) {
		w := copy(b.s[b.wi:], s[r:])
		r += w
		b.wi += w
		if b.wi == len(b.s) {
			b.wi = 0
			if onFull != nil {
				onFull(b.s)
			}
		}
	}
	return
}
