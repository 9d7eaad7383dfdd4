package voxlink

import "strings"

// responseCorrelator associates streamed fragments with the logical message
// they belong to. Its one job is detecting stale audio: fragments the server
// queued before an interrupt keep arriving after the client told the user
// playback stopped, and must not be played.
type responseCorrelator struct {
	currentID     string
	interruptedID string
	partial       strings.Builder
}

// observeText records a text fragment and accumulates the partial response.
func (c *responseCorrelator) observeText(id, text string) {
	c.observe(id)
	c.partial.WriteString(text)
}

// observeAudio reports whether an audio fragment should be surfaced.
// Fragments carrying the interrupted message id are stale and dropped.
func (c *responseCorrelator) observeAudio(id string) bool {
	if id != "" && id == c.interruptedID {
		return false
	}
	c.observe(id)
	return true
}

// observe adopts a new non-empty message id as current. A fragment carrying
// an id other than the interrupted one means a fresh response is streaming,
// so the interrupt memory is cleared.
func (c *responseCorrelator) observe(id string) {
	if id == "" {
		return
	}
	if id != c.interruptedID {
		c.interruptedID = ""
	}
	if id != c.currentID {
		c.currentID = id
	}
}

// interrupt remembers which message was cut off and returns its id. An
// interrupt without an explicit id falls back to the message currently
// streaming in.
func (c *responseCorrelator) interrupt(explicitID string) string {
	id := explicitID
	if id == "" {
		id = c.currentID
	}
	c.interruptedID = id
	c.currentID = ""
	c.partial.Reset()
	return id
}

// partialText returns the accumulated text of the in-flight response.
func (c *responseCorrelator) partialText() string {
	return c.partial.String()
}

// reset clears all correlation state. Called on disconnect.
func (c *responseCorrelator) reset() {
	c.currentID = ""
	c.interruptedID = ""
	c.partial.Reset()
}
