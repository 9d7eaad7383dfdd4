package audio

import "encoding/base64"

// DefaultChunkBytes is the PCM chunk size used when streaming microphone
// audio: 100ms of PCM16 mono at 16kHz.
const DefaultChunkBytes = 3200

// EncodeChunks splits pcm into chunks of at most chunkBytes and encodes
// each as standard base64, ready for the stream path. chunkBytes is
// rounded down to a whole number of samples; values below one sample fall
// back to DefaultChunkBytes.
func EncodeChunks(pcm []byte, chunkBytes int) []string {
	chunkBytes = chunkBytes / 2 * 2
	if chunkBytes < 2 {
		chunkBytes = DefaultChunkBytes
	}
	pcm = pcm[:len(pcm)/2*2]

	var chunks []string
	for len(pcm) > 0 {
		n := chunkBytes
		if n > len(pcm) {
			n = len(pcm)
		}
		chunks = append(chunks, base64.StdEncoding.EncodeToString(pcm[:n]))
		pcm = pcm[n:]
	}
	return chunks
}
