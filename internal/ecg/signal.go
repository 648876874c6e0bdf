// Package ecg parses, analyzes and synthesizes single-lead ECG signals for
// the interpreter demo. The analyzer is a deterministic R-peak heuristic:
// good enough to exercise the pipeline end to end without shipping model
// weights.
package ecg

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultSampleRate is assumed when an upload does not state one.
const DefaultSampleRate = 250

var (
	// ErrBadSignal is returned for structurally invalid uploads.
	ErrBadSignal = errors.New("ecg: malformed signal payload")

	// ErrTooShort is returned when a signal has fewer than two seconds of
	// samples, which is not enough to estimate rhythm.
	ErrTooShort = errors.New("ecg: signal too short")
)

// Signal is a raw single-lead trace.
type Signal struct {
	Samples    []float64 `json:"signal"`
	SampleRate int       `json:"sample_rate"`
}

// Duration returns the trace length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// ParseJSON decodes an uploaded {"signal": [...], "sample_rate": n} document.
// The sample rate is optional and defaults to 250 Hz; an explicit
// non-positive rate is rejected rather than silently corrected.
func ParseJSON(data []byte) (Signal, error) {
	var raw struct {
		Samples    []float64 `json:"signal"`
		SampleRate *int      `json:"sample_rate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrBadSignal, err)
	}
	if len(raw.Samples) == 0 {
		return Signal{}, fmt.Errorf("%w: signal key with samples is required", ErrBadSignal)
	}

	sig := Signal{Samples: raw.Samples, SampleRate: DefaultSampleRate}
	if raw.SampleRate != nil {
		if *raw.SampleRate <= 0 {
			return Signal{}, fmt.Errorf("%w: sample_rate must be positive", ErrBadSignal)
		}
		sig.SampleRate = *raw.SampleRate
	}
	return sig, nil
}
