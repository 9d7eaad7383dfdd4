// Package audio converts between the PCM formats involved in a voice
// session: microphone capture rate to the server's expected rate, raw
// PCM16 to the base64 chunks the wire protocol carries, and PCM16 to WAV
// for archived recordings.
//
// All PCM in this package is 16-bit signed little-endian mono.
package audio
