package ecg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	sig, err := ParseJSON([]byte(`{"signal":[0.1,0.2,0.3],"sample_rate":360}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, sig.Samples)
	assert.Equal(t, 360, sig.SampleRate)
}

func TestParseJSONDefaultsSampleRate(t *testing.T) {
	sig, err := ParseJSON([]byte(`{"signal":[1,2,3]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRate, sig.SampleRate)
}

func TestParseJSONRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"signal":`,
		"missing key":   `{"samples":[1,2]}`,
		"empty signal":  `{"signal":[]}`,
		"zero rate":     `{"signal":[1,2],"sample_rate":0}`,
		"negative rate": `{"signal":[1,2],"sample_rate":-250}`,
	}
	for name, payload := range cases {
		_, err := ParseJSON([]byte(payload))
		require.ErrorIs(t, err, ErrBadSignal, name)
	}
}

func TestSignalDuration(t *testing.T) {
	sig := Signal{Samples: make([]float64, 2500), SampleRate: 250}
	assert.Equal(t, 10.0, sig.Duration())

	assert.Zero(t, Signal{Samples: []float64{1}}.Duration())
}

func TestSynthesizeDeterministic(t *testing.T) {
	a := Synthesize(10, 250, 42)
	b := Synthesize(10, 250, 42)
	c := Synthesize(10, 250, 43)

	assert.Equal(t, a.Samples, b.Samples)
	assert.NotEqual(t, a.Samples, c.Samples)
	assert.Len(t, a.Samples, 2500)
	assert.Equal(t, 250, a.SampleRate)
}
