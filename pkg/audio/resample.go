package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts a stream of PCM16 mono chunks from one sample rate to
// another. Chunks are processed as they arrive, so it suits the live
// microphone path where audio is streamed in small pieces.
//
// Not safe for concurrent use; one resampler per stream.
type Resampler struct {
	srcRate int
	dstRate int
	rs      resampling.Resampler
}

// NewResampler creates a resampler from srcRate to dstRate Hz. Equal rates
// are allowed; Process then passes chunks through untouched.
func NewResampler(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate != dstRate {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(srcRate),
			OutputRate: float64(dstRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("audio: create resampler: %w", err)
		}
		r.rs = rs
	}
	return r, nil
}

// Process converts one PCM16 chunk. The output length varies with the rate
// ratio and the converter's internal buffering; an empty slice is a valid
// result for a short chunk. A trailing odd byte is dropped.
func (r *Resampler) Process(pcm []byte) ([]byte, error) {
	pcm = pcm[:len(pcm)/2*2]
	if len(pcm) == 0 {
		return nil, nil
	}
	if r.rs == nil {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	input := make([]float64, len(pcm)/2)
	for i := range input {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	output, err := r.rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, f := range output {
		s := int16(f * 32767.0)
		if f > 1.0 {
			s = 32767
		} else if f < -1.0 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}

// Ratio returns the output/input rate ratio.
func (r *Resampler) Ratio() float64 {
	return float64(r.dstRate) / float64(r.srcRate)
}
