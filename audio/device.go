// Package audio provides the optional microphone input and the level
// analyser bound to u_audioLevel.
package audio

// We'll be using portaudio for audio input handling.
// macos:	brew install portaudio
// debian:	sudo apt-get install portaudio19-dev
// windows:	pacman -S mingw-w64-x86_64-portaudio

// AudioDevice produces a stream of mono sample chunks.
type AudioDevice interface {
	// Start begins audio processing and returns a receive-only channel of audio chunks.
	Start() (<-chan []float32, error)
	// Stop terminates the audio stream and closes the channel.
	Stop() error
	SampleRate() int
}

// NullDevice is a silent device used when no microphone is available.
type NullDevice struct {
	rate int
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{rate: sampleRate}
}

// Start returns a nil channel: the device never produces samples.
func (d *NullDevice) Start() (<-chan []float32, error) {
	return nil, nil
}

func (d *NullDevice) Stop() error { return nil }

func (d *NullDevice) SampleRate() int { return d.rate }

// DownmixStereoToMono converts an interleaved stereo float32 buffer to mono
// by averaging the left and right channels.
func DownmixStereoToMono(stereo []float32) []float32 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}
	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) * 0.5
	}
	return mono
}
