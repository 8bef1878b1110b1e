package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const wavHeaderSize = 44

// wavHeader is the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps interleaved s16le PCM into a WAV container.
func EncodeWAV(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	blockAlign := channels * 2
	usable := len(pcm) - len(pcm)%blockAlign
	if usable == 0 {
		return nil, fmt.Errorf("audio shorter than one frame")
	}

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + usable),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(usable),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+usable))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm[:usable])
	return buf.Bytes(), nil
}

// ValidateWAV checks the canonical header layout without decoding samples.
func ValidateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}
	return nil
}

// WAVDuration reads the playing time of a canonical PCM WAV file.
func WAVDuration(data []byte) (time.Duration, error) {
	if err := ValidateWAV(data); err != nil {
		return 0, err
	}
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if byteRate == 0 {
		return 0, fmt.Errorf("invalid byte rate: 0")
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	return time.Duration(dataSize) * time.Second / time.Duration(byteRate), nil
}

// PCMDuration is the playing time of n bytes of s16le PCM.
func PCMDuration(n int, sampleRate int, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := n / (channels * 2)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Tone renders a mono s16le sine wave.
func Tone(frequency float64, length time.Duration, sampleRate int) []byte {
	if sampleRate <= 0 || length <= 0 {
		return nil
	}
	samples := int(int64(length) * int64(sampleRate) / int64(time.Second))
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)) * 0.3 * math.MaxInt16
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
