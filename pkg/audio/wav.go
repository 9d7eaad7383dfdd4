package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteWAV writes pcm as a PCM16 mono WAV file at the given sample rate.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	pcm = pcm[:len(pcm)/2*2]

	var header [44]byte
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+len(pcm)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:], 1)  // mono
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(header[32:], 2)                    // block align
	binary.LittleEndian.PutUint16(header[34:], 16)                   // bits per sample
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pcm)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// ReadWAV parses a PCM16 mono WAV stream and returns the raw samples and
// sample rate. Non-PCM encodings and multi-channel files are rejected;
// unknown chunks are skipped.
func ReadWAV(r io.Reader) (pcm []byte, sampleRate int, err error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("audio: read wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a wav stream")
	}

	var haveFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, fmt.Errorf("audio: wav stream has no data chunk")
			}
			return nil, 0, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("audio: short fmt chunk")
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, err
			}
			if format := binary.LittleEndian.Uint16(buf[0:2]); format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported wav encoding %d", format)
			}
			if ch := binary.LittleEndian.Uint16(buf[2:4]); ch != 1 {
				return nil, 0, fmt.Errorf("audio: %d channels, want mono", ch)
			}
			if bits := binary.LittleEndian.Uint16(buf[14:16]); bits != 16 {
				return nil, 0, fmt.Errorf("audio: %d-bit samples, want 16", bits)
			}
			sampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			pcm = make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, 0, err
			}
			return pcm, sampleRate, nil

		default:
			// Chunks are word-aligned; odd sizes carry a pad byte.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, err
			}
		}
	}
}
