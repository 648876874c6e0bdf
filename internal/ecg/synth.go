package ecg

import (
	"math"
	mathrand "math/rand"
)

// Synthesize produces a clean regular rhythm at one beat per second: a
// half-sine R-wave spike riding on low-amplitude noise. Deterministic for a
// given seed, so demo runs and tests see identical traces.
func Synthesize(seconds, rate int, seed int64) Signal {
	return synthesize(seconds, rate, seed, 0)
}

// SynthesizeEctopic is Synthesize with every nth beat fired 0.3 s early,
// mimicking premature ectopic beats. every <= 0 means no ectopy.
func SynthesizeEctopic(seconds, rate int, seed int64, every int) Signal {
	return synthesize(seconds, rate, seed, every)
}

func synthesize(seconds, rate int, seed int64, ectopicEvery int) Signal {
	n := seconds * rate
	samples := make([]float64, n)

	// R-wave half-sine, 0.04 s wide, centred 0.24 s into each beat slot.
	width := int(0.04 * float64(rate))
	if width < 2 {
		width = 2
	}
	for beat := 0; beat < seconds; beat++ {
		center := beat*rate + int(0.24*float64(rate))
		if ectopicEvery > 0 && beat > 0 && beat%ectopicEvery == 0 {
			center -= int(0.3 * float64(rate))
		}
		start := center - width/2
		for j := 0; j <= width; j++ {
			idx := start + j
			if idx < 0 || idx >= n {
				continue
			}
			r := float64(j) / float64(width)
			samples[idx] += math.Sin(r * math.Pi)
		}
	}

	rnd := mathrand.New(mathrand.NewSource(seed))
	for i := range samples {
		samples[i] += (rnd.Float64() - 0.5) * 0.02
	}

	return Signal{Samples: samples, SampleRate: rate}
}
