package demod

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/ftl/rtlscan/core"
)

var allModes = []core.DemodMode{core.ModeNone, core.ModeAM, core.ModeFM, core.ModeSSB, core.ModeCW, core.ModeDMR}

func TestDemodulateNoneReturnsZeros(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			d := New(48000, rand.New(rand.NewSource(1)))
			samples := noise(n, 1)

			result := d.Demodulate(samples, core.ModeNone)

			require.Len(t, result.Audio, n)
			for _, v := range result.Audio {
				assert.Equal(t, 0.0, v)
			}
			assert.Equal(t, 0.0, result.Level)
		})
	}
}

func TestDemodulateKeepsLength(t *testing.T) {
	for _, mode := range allModes {
		for _, n := range []int{0, 1, 2, 1000} {
			t.Run(fmt.Sprintf("%s_%d", mode, n), func(t *testing.T) {
				d := New(48000, rand.New(rand.NewSource(1)))

				result := d.Demodulate(noise(n, 2), mode)

				assert.Len(t, result.Audio, n)
				for _, v := range result.Audio {
					assert.True(t, math.Abs(v) <= 1.0+1e-9, "%v", v)
				}
			})
		}
	}
}

func TestAMConstantMagnitude(t *testing.T) {
	d := New(48000, nil)
	samples := []complex128{1, -1, 1i, -1i, 1, -1, 1i, -1i}

	result := d.Demodulate(samples, core.ModeAM)

	for _, v := range result.Audio {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestAMUnitImpulse(t *testing.T) {
	d := New(48000, nil)
	samples := []complex128{0, 0, 1, 0, 0}

	result := d.Demodulate(samples, core.ModeAM)

	assert.InDelta(t, 1.0, floats.Norm(result.Audio, math.Inf(1)), 1e-12)
	assert.Equal(t, 2, floats.MaxIdx(result.Audio))
}

func TestFMConstantFrequency(t *testing.T) {
	tt := []struct {
		name     string
		cycles   float64
		expected float64
	}{
		{"positive", 0.1, 1},
		{"negative", -0.1, -1},
		{"across pi", 0.45, 1},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d := New(48000, nil)
			samples := make([]complex128, 256)
			for i := range samples {
				samples[i] = cmplx.Exp(complex(0, 2*math.Pi*tc.cycles*float64(i)))
			}

			result := d.Demodulate(samples, core.ModeFM)

			for _, v := range result.Audio {
				assert.InDelta(t, tc.expected, v, 1e-9)
			}
		})
	}
}

func TestSSBUsesRealPart(t *testing.T) {
	d := New(48000, nil)
	samples := []complex128{complex(1, 5), complex(-1, 5), complex(1, -5), complex(-1, -5)}

	result := d.Demodulate(samples, core.ModeSSB)

	assert.Equal(t, []float64{1, -1, 1, -1}, result.Audio)
	assert.InDelta(t, 1.0, result.Level, 1e-12)
}

func TestCWSmoothsEnvelope(t *testing.T) {
	d := New(3000, nil)
	samples := make([]complex128, 30)
	for i := 10; i < 20; i++ {
		samples[i] = 1
	}

	result := d.Demodulate(samples, core.ModeCW)

	require.Len(t, result.Audio, 30)
	assert.InDelta(t, 1.0, floats.Max(result.Audio), 1e-9)
	assert.True(t, result.Audio[9] > result.Audio[8], "the envelope rises before the key down")
}

func TestDMRActivity(t *testing.T) {
	sampleRate := 48000
	d := New(sampleRate, rand.New(rand.NewSource(42)))

	result := d.Demodulate(noise(4800, 3), core.ModeDMR)

	require.True(t, result.Digital.Active)
	assert.True(t, result.Digital.Talkgroup >= 1 && result.Digital.Talkgroup <= 9999)
	assert.Contains(t, []int{1, 2}, result.Digital.Timeslot)
	assert.True(t, result.Digital.ColorCode >= 0 && result.Digital.ColorCode <= 15)
	assert.InDelta(t, 0.3, floats.Max(result.Audio), 1e-3)
	assert.InDelta(t, 0.3*math.Sin(2*math.Pi*1200/float64(sampleRate)), result.Audio[1], 1e-12)

	again := d.Demodulate(noise(4800, 4), core.ModeDMR)
	assert.Equal(t, result.Digital, again.Digital, "frame info persists while active")

	samples := make([]complex128, 4800)
	for i := range samples {
		samples[i] = 1
	}
	quiet := d.Demodulate(samples, core.ModeDMR)
	assert.Equal(t, FrameInfo{}, quiet.Digital)
	assert.Equal(t, 0.0, floats.Norm(quiet.Audio, math.Inf(1)))
}

func TestNonFiniteSamplesResultInSilence(t *testing.T) {
	for _, mode := range allModes[1:] {
		t.Run(mode.String(), func(t *testing.T) {
			d := New(48000, nil)
			samples := noise(100, 5)
			samples[50] = cmplx.NaN()

			result := d.Demodulate(samples, mode)

			require.Len(t, result.Audio, 100)
			assert.Equal(t, 0.0, floats.Norm(result.Audio, math.Inf(1)))
		})
	}
}

func TestUnknownModeResultsInSilence(t *testing.T) {
	d := New(48000, nil)

	result := d.Demodulate(noise(10, 6), core.DemodMode(99))

	assert.Equal(t, make([]float64, 10), result.Audio)
}

func sine(n, sampleRate int, frequency float64) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = math.Sin(2 * math.Pi * frequency * float64(i) / float64(sampleRate))
	}
	return result
}

func TestDetectTone(t *testing.T) {
	tt := []struct {
		frequency float64
		expected  float64
	}{
		{94.8, 94.8},
		{100, 100.0},
		{250.3, 250.3},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%.1f", tc.frequency), func(t *testing.T) {
			d := New(AudioSampleRate, nil)

			d.detectTone(sine(1024, AudioSampleRate, tc.frequency))

			tone, ok := d.Tone()
			require.True(t, ok)
			assert.Equal(t, tc.expected, tone)
		})
	}
}

func TestDetectToneClears(t *testing.T) {
	d := New(AudioSampleRate, nil)
	audio := sine(1024, AudioSampleRate, 94.8)

	d.detectTone(audio)
	d.detectTone(audio[:63])
	_, ok := d.Tone()
	assert.False(t, ok, "too few points clear the tone")

	d.detectTone(audio)
	d.detectTone(make([]float64, 1024))
	_, ok = d.Tone()
	assert.False(t, ok, "silence clears the tone")

	d.detectTone(audio)
	d.detectTone(sine(1024, AudioSampleRate, 1000))
	_, ok = d.Tone()
	assert.False(t, ok, "a tone outside the CTCSS band clears the tone")
}

// fmBlock returns one capture block of a FM carrier modulated with a voice tone and a CTCSS tone.
func fmBlock(sampleRate, n int, voice, ctcss float64) []complex128 {
	result := make([]complex128, n)
	phase := 0.0
	for i := range result {
		t := float64(i) / float64(sampleRate)
		f := 5000*math.Sin(2*math.Pi*voice*t) + 500*math.Sin(2*math.Pi*ctcss*t)
		phase += 2 * math.Pi * f / float64(sampleRate)
		result[i] = cmplx.Rect(0.5, phase)
	}
	return result
}

func TestDetectToneAtCaptureRate(t *testing.T) {
	const sampleRate = 2048000
	tt := []float64{67.0, 94.8, 123.0, 162.2, 250.3}
	for _, ctcss := range tt {
		t.Run(fmt.Sprintf("%.1f", ctcss), func(t *testing.T) {
			d := New(sampleRate, nil)

			result := d.Demodulate(fmBlock(sampleRate, sampleRate/10, 1000, ctcss), core.ModeFM)

			require.NotNil(t, result.Tone)
			assert.Equal(t, ctcss, *result.Tone)
		})
	}
}

func TestSideChannelsFollowMode(t *testing.T) {
	d := New(AudioSampleRate, rand.New(rand.NewSource(1)))

	result := d.Demodulate(fmBlock(AudioSampleRate, 4800, 1000, 94.8), core.ModeFM)
	require.NotNil(t, result.Tone)

	result = d.Demodulate(noise(4800, 3), core.ModeAM)
	assert.Nil(t, result.Tone, "the tone is only detected in FM")

	result = d.Demodulate(noise(4800, 3), core.ModeDMR)
	require.True(t, result.Digital.Active)

	result = d.Demodulate(noise(4800, 3), core.ModeSSB)
	assert.False(t, result.Digital.Active, "digital activity is only detected in DMR")
}

func TestNearestCTCSSTone(t *testing.T) {
	tt := []struct {
		value    float64
		expected float64
	}{
		{0, 67.0},
		{67.1, 67.0},
		{93.75, 94.8},
		{150, 151.4},
		{1000, 250.3},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%.2f", tc.value), func(t *testing.T) {
			assert.Equal(t, tc.expected, NearestCTCSSTone(tc.value))
		})
	}
	assert.Len(t, CTCSSTones, 38)
}

func TestMovingAverage(t *testing.T) {
	tt := []struct {
		name     string
		values   []float64
		length   int
		expected []float64
	}{
		{"empty", []float64{}, 3, []float64{}},
		{"length 1", []float64{1, 2, 3}, 1, []float64{1, 2, 3}},
		{"odd length", []float64{0, 0, 3, 0, 0}, 3, []float64{0, 1, 1, 1, 0}},
		{"even length", []float64{1, 2, 3, 4}, 2, []float64{0.5, 1.5, 2.5, 3.5}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			actual := movingAverage(tc.values, tc.length)
			require.Len(t, actual, len(tc.expected))
			for i := range actual {
				assert.InDelta(t, tc.expected[i], actual[i], 1e-12)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	phases := []float64{3, -3, 3}

	unwrap(phases)

	assert.InDelta(t, 3.0, phases[0], 1e-12)
	assert.InDelta(t, 2*math.Pi-3, phases[1], 1e-12)
	assert.InDelta(t, 3.0, phases[2], 1e-12)
}

func TestSlidingWindow(t *testing.T) {
	tt := []struct {
		name     string
		length   int
		values   []float64
		expected []float64
	}{
		{"window 1", 1, []float64{1, 2, 3}, []float64{1, 2, 3}},
		{"window 2", 2, []float64{2, 4, 6}, []float64{1, 3, 5}},
	}
	for _, tc := range tt {
		w := newSlidingWindow(tc.length)
		t.Run(tc.name, func(t *testing.T) {
			actual := make([]float64, len(tc.values))
			for i, v := range tc.values {
				actual[i] = w.Put(v)
			}
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func BenchmarkDemodulateFM(b *testing.B) {
	d := New(2048000, rand.New(rand.NewSource(1)))
	samples := noise(204800, 7)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Demodulate(samples, core.ModeFM)
	}
}

func noise(n int, seed int64) []complex128 {
	random := rand.New(rand.NewSource(seed))
	result := make([]complex128, n)
	for i := range result {
		result[i] = complex(random.Float64()*2-1, random.Float64()*2-1)
	}
	return result
}
