package usecase

import (
	"errors"
	"io"

	"vozchat/internal/ports"
)

// pumpAudioChunks drains the capture device into the recording buffer until
// the device reports EOF or fails.
func pumpAudioChunks(audio ports.AudioSession, sink *captureBuffer, chunkSize int, done chan struct{}) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			sink.write(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				sink.fail(err)
			}
			return
		}
	}
}
