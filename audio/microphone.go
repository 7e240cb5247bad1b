package audio

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures the default input device through portaudio. The
// device is opened with two channels when it has them and downmixed to mono.
type Microphone struct {
	sampleRate int
	channels   int

	mu          sync.Mutex
	initialized bool
	stream      *portaudio.Stream
	audioChan   chan []float32
	dropped     int
}

// NewMicrophone initializes portaudio. Stop releases it.
func NewMicrophone(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate, initialized: true}, nil
}

func (m *Microphone) audioCallback(in []float32) {
	// PortAudio reuses its buffer.
	var chunk []float32
	if m.channels == 2 {
		chunk = DownmixStereoToMono(in)
	} else {
		chunk = append([]float32(nil), in...)
	}

	select {
	case m.audioChan <- chunk:
	default:
		m.dropped++
		if m.dropped%100 == 1 {
			log.Printf("Warning: audio channel buffer is full, dropped %d chunks", m.dropped)
		}
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil, fmt.Errorf("microphone already started")
	}

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		return nil, err
	}
	if host.DefaultInputDevice == nil {
		return nil, fmt.Errorf("no default audio input device")
	}

	m.channels = 1
	if host.DefaultInputDevice.MaxInputChannels >= 2 {
		m.channels = 2
	}
	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = m.channels
	params.SampleRate = float64(m.sampleRate)

	m.audioChan = make(chan []float32, 16)
	stream, err := portaudio.OpenStream(params, m.audioCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	log.Printf("Microphone started: %s, %d channel(s) at %d Hz", host.DefaultInputDevice.Name, m.channels, m.sampleRate)
	return m.audioChan, nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.stream != nil {
		err = m.stream.Close()
		m.stream = nil
		close(m.audioChan)
	}
	if m.initialized {
		m.initialized = false
		if terr := portaudio.Terminate(); err == nil {
			err = terr
		}
	}
	return err
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}
