package audio

import (
	"fmt"
	"log"
	"math"
	"sync"

	fft "github.com/mjibson/go-dsp/fft"
)

const (
	// FFTSize is the number of recent samples analysed per Value call.
	FFTSize           = 1024
	historyBufferSize = FFTSize * 4
	// lowBins is the number of bins, above DC, averaged into the level.
	lowBins = 32

	minDecibels = -100.0
	maxDecibels = -30.0
)

// Level turns a sample stream into a single smoothed loudness value in
// [0, 1], weighted to the low end of the spectrum.
type Level struct {
	device AudioDevice
	window []float64

	mu            sync.Mutex
	historyBuffer []float32
	bufferPos     int
	last          float64

	smoothingFactor float64
}

// NewLevel starts device and consumes its samples on a goroutine.
func NewLevel(device AudioDevice) (*Level, error) {
	l := newLevel(device)
	audioChan, err := device.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start audio device: %w", err)
	}
	if audioChan != nil {
		go l.listenForAudio(audioChan)
	}
	return l, nil
}

// OpenLevel analyses the default microphone, falling back to silence when
// it cannot be opened.
func OpenLevel(sampleRate int) *Level {
	var device AudioDevice = NewNullDevice(sampleRate)
	if mic, err := NewMicrophone(sampleRate); err != nil {
		log.Printf("Could not initialize microphone: %v. Using silent fallback.", err)
	} else {
		device = mic
	}
	l, err := NewLevel(device)
	if err != nil {
		log.Printf("%v. Using silent fallback.", err)
		device.Stop()
		l, _ = NewLevel(NewNullDevice(sampleRate))
	}
	return l
}

func newLevel(device AudioDevice) *Level {
	return &Level{
		device:          device,
		window:          blackmanWindow(FFTSize),
		historyBuffer:   make([]float32, historyBufferSize),
		smoothingFactor: 0.8,
	}
}

func (l *Level) listenForAudio(audioChan <-chan []float32) {
	for samples := range audioChan {
		l.Write(samples)
	}
	log.Printf("Audio channel closed. Level listener exiting.")
}

// Write appends samples to the history ring.
func (l *Level) Write(samples []float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sample := range samples {
		l.historyBuffer[l.bufferPos] = sample
		l.bufferPos = (l.bufferPos + 1) % historyBufferSize
	}
}

func (l *Level) recentSamples(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		index := (l.bufferPos - n + i + historyBufferSize) % historyBufferSize
		out[i] = l.historyBuffer[index]
	}
	return out
}

// Value analyses the most recent samples and returns the smoothed level.
// Each call advances the smoothing by one step, so call it once per frame.
func (l *Level) Value() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	samples := l.recentSamples(FFTSize)
	samples64 := make([]float64, FFTSize)
	for i, s := range samples {
		samples64[i] = float64(s) * l.window[i]
	}
	spectrum := fft.FFTReal(samples64)

	var sum float64
	for i := 1; i <= lowBins; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		sum += math.Sqrt(re*re+im*im) * (2.0 / FFTSize)
	}
	db := 20 * math.Log10(sum/lowBins+1e-9)

	var scaled float64
	switch {
	case db < minDecibels:
		scaled = 0
	case db > maxDecibels:
		scaled = 1
	default:
		scaled = (db - minDecibels) / (maxDecibels - minDecibels)
	}
	l.last = l.smoothingFactor*l.last + (1-l.smoothingFactor)*scaled
	return l.last
}

// Close stops the device, which ends the listener.
func (l *Level) Close() error {
	if l.device == nil {
		return nil
	}
	return l.device.Stop()
}

// blackmanWindow generates a Blackman window.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	a0, a1, a2 := 0.42, 0.5, 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - a1*math.Cos(2*math.Pi*t) + a2*math.Cos(4*math.Pi*t)
	}
	return window
}
