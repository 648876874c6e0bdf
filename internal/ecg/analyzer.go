package ecg

import (
	"math"
	"sort"
)

// RiskLevel grades a finding for triage.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// Interpretation texts shown to clinicians. Kept word for word stable: they
// are referenced in stored reports and clinician feedback.
const (
	diagnosisNormal   = "Normal Sinus Rhythm"
	diagnosisOccas    = "Occasional Ectopic/Abnormal beats detected."
	diagnosisFrequent = "Frequent Arrhythmia Detected. Please consult a cardiologist immediately."
	diagnosisNoBeats  = "Could not detect any clear heartbeats."
)

// Analyzer tuning. The peak threshold tracks the signal's own statistics so
// amplitude scaling does not matter; the refractory window enforces a
// physiological minimum spacing between beats.
const (
	peakStdFactor      = 0.8 // threshold = mean + 0.8*std
	refractorySeconds  = 0.4 // minimum R-R spacing
	rrTolerance        = 0.2 // beat abnormal when R-R deviates >20% from median
	highRiskPercentage = 15.0
	minSignalSeconds   = 2
)

// Analysis is the interpreter's finding for one recording.
type Analysis struct {
	TotalBeats     int       `json:"total_beats"`
	AbnormalBeats  int       `json:"abnormal_beats"`
	Diagnosis      string    `json:"diagnosis"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Confidence     float64   `json:"confidence"`
	HeartRateBPM   float64   `json:"heart_rate_bpm"`
	AnomalyIndices []int     `json:"anomaly_indices,omitempty"`
}

// Analyze detects R-peaks and grades rhythm regularity. A signal where no
// beats stand out is a valid (if unhelpful) finding, not an error; a signal
// shorter than two seconds is rejected with ErrTooShort.
func Analyze(sig Signal) (Analysis, error) {
	rate := sig.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if len(sig.Samples) < minSignalSeconds*rate {
		return Analysis{}, ErrTooShort
	}

	peaks := detectPeaks(sig.Samples, rate)
	if len(peaks) == 0 {
		return Analysis{
			Diagnosis: diagnosisNoBeats,
			RiskLevel: RiskUnknown,
		}, nil
	}

	analysis := Analysis{TotalBeats: len(peaks)}

	if len(peaks) < 2 {
		// A single beat cannot be graded for regularity.
		analysis.Diagnosis = diagnosisNormal
		analysis.RiskLevel = RiskLow
		analysis.Confidence = 50.0
		return analysis, nil
	}

	rr := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr = append(rr, float64(peaks[i]-peaks[i-1]))
	}
	medianRR := median(rr)

	for i, interval := range rr {
		if math.Abs(interval-medianRR) > rrTolerance*medianRR {
			analysis.AbnormalBeats++
			analysis.AnomalyIndices = append(analysis.AnomalyIndices, peaks[i+1])
		}
	}

	analysis.HeartRateBPM = round1(60.0 * float64(rate) / medianRR)
	analysis.Confidence = confidence(rr)

	switch {
	case analysis.AbnormalBeats == 0:
		analysis.Diagnosis = diagnosisNormal
		analysis.RiskLevel = RiskLow
	case percentage(analysis.AbnormalBeats, analysis.TotalBeats) > highRiskPercentage:
		analysis.Diagnosis = diagnosisFrequent
		analysis.RiskLevel = RiskHigh
	default:
		analysis.Diagnosis = diagnosisOccas
		analysis.RiskLevel = RiskMedium
	}
	return analysis, nil
}

// detectPeaks returns sample indices of R-peaks: local maxima above
// mean + 0.8*std, at least 0.4 s apart.
func detectPeaks(samples []float64, rate int) []int {
	mean, std := meanStd(samples)
	threshold := mean + peakStdFactor*std
	refractory := int(refractorySeconds * float64(rate))
	if refractory < 1 {
		refractory = 1
	}

	var peaks []int
	last := -refractory
	for i := 1; i < len(samples)-1; i++ {
		if samples[i] <= threshold {
			continue
		}
		if samples[i] < samples[i-1] || samples[i] <= samples[i+1] {
			continue
		}
		if i-last < refractory {
			continue
		}
		peaks = append(peaks, i)
		last = i
	}
	return peaks
}

// confidence maps R-R regularity to a 50..99 score: perfectly even spacing
// scores highest, heavy variation bottoms out.
func confidence(rr []float64) float64 {
	mean, std := meanStd(rr)
	if mean == 0 {
		return 50.0
	}
	cv := std / mean
	score := 100.0 * (1.0 - cv)
	if score > 99.0 {
		score = 99.0
	}
	if score < 50.0 {
		score = 50.0
	}
	return round1(score)
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100.0
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
