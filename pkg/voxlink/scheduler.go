package voxlink

import "time"

// frameCategory tags queued frames for the eviction policy.
type frameCategory int

const (
	categoryControl frameCategory = iota
	categoryEvent
	categoryAudio
)

// outboundFrame is an already-encoded frame awaiting transmission. The
// scheduler owns it exclusively from enqueue to transmit.
type outboundFrame struct {
	data     string
	category frameCategory
}

// Scheduler defaults.
const (
	// DefaultQueueLimit bounds the send queue. Capacity control is best
	// effort and applies to audio frames only.
	DefaultQueueLimit = 5

	// DefaultSendGap is the minimum time between two socket writes. The
	// host socket coalesces writes closer together than this into one
	// packet, destroying frame boundaries.
	DefaultSendGap = 100 * time.Millisecond
)

// sendScheduler is the paced outbound queue. It owns no timer; drain must
// be called by the engine tick.
type sendScheduler struct {
	queue    []outboundFrame
	limit    int
	gap      time.Duration
	lastSend time.Time
}

func newSendScheduler(limit int, gap time.Duration) *sendScheduler {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	if gap <= 0 {
		gap = DefaultSendGap
	}
	return &sendScheduler{limit: limit, gap: gap}
}

// enqueue appends a frame. When the queue is at capacity and the new frame
// is audio, the oldest queued audio frame is evicted first; control and
// event frames are never evicted and are accepted even past capacity.
func (s *sendScheduler) enqueue(f outboundFrame) {
	if len(s.queue) >= s.limit && f.category == categoryAudio {
		for i, queued := range s.queue {
			if queued.category == categoryAudio {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
	}
	s.queue = append(s.queue, f)
}

// drain pops at most one frame if the minimum gap since the last write has
// elapsed. Returning more than one frame per call would let the host
// recombine them into a single corrupted packet, so one is the hard limit.
func (s *sendScheduler) drain(now time.Time) (outboundFrame, bool) {
	if len(s.queue) == 0 {
		return outboundFrame{}, false
	}
	if !s.lastSend.IsZero() && now.Sub(s.lastSend) < s.gap {
		return outboundFrame{}, false
	}
	f := s.queue[0]
	s.queue = s.queue[1:]
	s.lastSend = now
	return f, true
}

// markSent records an out-of-band write (keepalive replies bypass the
// queue) so subsequent drains still respect the pacing gap.
func (s *sendScheduler) markSent(now time.Time) {
	s.lastSend = now
}

// reset drops all queued frames. Pending frames do not survive a transport
// teardown; they would be replayed against a fresh handshake otherwise.
func (s *sendScheduler) reset() {
	s.queue = nil
	s.lastSend = time.Time{}
}

func (s *sendScheduler) pending() int {
	return len(s.queue)
}
