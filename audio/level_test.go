package audio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanDevice struct {
	ch       chan []float32
	startErr error
	stopped  bool
}

func (d *chanDevice) Start() (<-chan []float32, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	return d.ch, nil
}

func (d *chanDevice) Stop() error {
	if !d.stopped {
		d.stopped = true
		close(d.ch)
	}
	return nil
}

func (d *chanDevice) SampleRate() int { return 44100 }

func sine(n int, cycles float64, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*cycles*float64(i)/float64(n)))
	}
	return out
}

func TestSilenceIsZero(t *testing.T) {
	l, err := NewLevel(NewNullDevice(44100))
	require.NoError(t, err)
	assert.Equal(t, 0.0, l.Value())
	assert.Equal(t, 0.0, l.Value())
	assert.NoError(t, l.Close())
}

func TestLowToneRaisesLevelSmoothly(t *testing.T) {
	l := newLevel(NewNullDevice(44100))
	l.Write(sine(FFTSize, 8, 1))

	first := l.Value()
	assert.Greater(t, first, 0.0)
	assert.LessOrEqual(t, first, 0.2+1e-9)

	v := first
	for i := 0; i < 20; i++ {
		next := l.Value()
		assert.GreaterOrEqual(t, next, v)
		v = next
	}
	assert.Greater(t, v, 0.5)
	assert.LessOrEqual(t, v, 1.0)

	l.Write(make([]float32, FFTSize))
	assert.Less(t, l.Value(), v)
}

func TestWriteWrapsHistory(t *testing.T) {
	l := newLevel(NewNullDevice(44100))
	l.Write(make([]float32, historyBufferSize-2))
	l.Write([]float32{1, 2, 3, 4})

	recent := l.recentSamples(4)
	assert.Equal(t, []float32{1, 2, 3, 4}, recent)
	assert.Equal(t, 2, l.bufferPos)
}

func TestListenerConsumesDevice(t *testing.T) {
	dev := &chanDevice{ch: make(chan []float32, 1)}
	l, err := NewLevel(dev)
	require.NoError(t, err)

	dev.ch <- []float32{0.5}
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.recentSamples(1)[0] == 0.5
	}, time.Second, time.Millisecond)

	require.NoError(t, l.Close())
	assert.True(t, dev.stopped)
}

func TestStartFailure(t *testing.T) {
	_, err := NewLevel(&chanDevice{startErr: errors.New("busy")})
	assert.ErrorContains(t, err, "busy")
}

func TestDownmixStereoToMono(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, DownmixStereoToMono([]float32{1, 0, 1, -1, 7}))
}
