package media

// ResampleStretch does a simple stretching of interleaved audio samples
// to the given total size. Gaps left by the nearest-index mapping are
// filled with the previous sample of the same channel.
func ResampleStretch(pcm Samples, size, channels int) Samples {
	frames := size / channels
	planes := make([]Samples, channels)
	for c := range planes {
		planes[c] = make(Samples, frames)
	}
	// ratio is basically the destination sample rate
	// divided by the origin sample rate (i.e. 48000/44100)
	ratio := float32(size) / float32(len(pcm))
	for i := 0; i+channels <= len(pcm); i += channels {
		idx := int(float32(i/channels) * ratio)
		if idx >= frames {
			idx = frames - 1
		}
		for c := 0; c < channels; c++ {
			planes[c][idx] = pcm[i+c]
		}
	}
	for c := 0; c < channels; c++ {
		for i := 1; i < frames; i++ {
			if planes[c][i] == 0 {
				planes[c][i] = planes[c][i-1]
			}
		}
	}
	audio := make(Samples, size)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			audio[i*channels+c] = planes[c][i]
		}
	}
	return audio
}
