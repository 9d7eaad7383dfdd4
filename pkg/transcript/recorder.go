package transcript

import (
	"context"
	"strings"
	"sync"

	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

// Recorder captures a live session into a Store. It subscribes to the
// client's events and writes one entry per completed utterance:
//
//   - final speech-to-text results become player entries
//   - completed character responses become character entries, with streamed
//     fragments of the same message accumulated into one entry
//   - an interrupt flushes the partial response as an interrupted entry
//
// The conversation id comes from the session confirmation; events arriving
// before it are dropped.
type Recorder struct {
	store  Store
	logger voxlink.Logger
	subs   []voxlink.Subscription
	client *voxlink.Client

	mu      sync.Mutex
	convID  string
	msgID   string
	partial strings.Builder
}

// NewRecorder attaches a recorder to the client. Detach with Close.
func NewRecorder(store Store, client *voxlink.Client, logger voxlink.Logger) *Recorder {
	if logger == nil {
		logger = voxlink.DefaultLogger()
	}
	r := &Recorder{store: store, logger: logger, client: client}
	r.subs = []voxlink.Subscription{
		client.Subscribe(voxlink.KindSessionInfo, r.onSession),
		client.Subscribe(voxlink.KindTranscript, r.onTranscript),
		client.Subscribe(voxlink.KindBotResponse, r.onBotResponse),
		client.Subscribe(voxlink.KindInterrupt, r.onInterrupt),
		client.Subscribe(voxlink.KindDisconnected, r.onDisconnected),
	}
	return r
}

// Close detaches the recorder from the client. Any partial response is
// discarded; the session ending mid-response is not an utterance.
func (r *Recorder) Close() {
	for _, sub := range r.subs {
		r.client.Unsubscribe(sub)
	}
	r.subs = nil
}

func (r *Recorder) onSession(ev *voxlink.Event) {
	r.mu.Lock()
	r.convID = ev.SessionInfo.ConversationID
	r.msgID = ""
	r.partial.Reset()
	r.mu.Unlock()
}

func (r *Recorder) onTranscript(ev *voxlink.Event) {
	if !ev.Transcript.IsFinal || ev.Transcript.Text == "" {
		return
	}
	r.mu.Lock()
	conv := r.convID
	r.mu.Unlock()
	r.append(Entry{
		ConversationID: conv,
		Speaker:        SpeakerPlayer,
		Text:           ev.Transcript.Text,
	})
}

func (r *Recorder) onBotResponse(ev *voxlink.Event) {
	b := ev.BotResponse
	r.mu.Lock()
	if b.MessageID != r.msgID {
		// A new response started without the previous one finishing.
		r.partial.Reset()
		r.msgID = b.MessageID
	}
	r.partial.WriteString(b.Text)
	var done Entry
	flush := b.IsFinal
	if flush {
		done = Entry{
			ConversationID: r.convID,
			Speaker:        SpeakerCharacter,
			Text:           r.partial.String(),
			MessageID:      b.MessageID,
		}
		r.partial.Reset()
		r.msgID = ""
	}
	r.mu.Unlock()
	if flush {
		r.append(done)
	}
}

func (r *Recorder) onInterrupt(ev *voxlink.Event) {
	r.mu.Lock()
	text := r.partial.String()
	msgID := r.msgID
	conv := r.convID
	r.partial.Reset()
	r.msgID = ""
	r.mu.Unlock()
	if text == "" {
		return
	}
	r.append(Entry{
		ConversationID: conv,
		Speaker:        SpeakerCharacter,
		Text:           text,
		MessageID:      msgID,
		Interrupted:    true,
	})
}

func (r *Recorder) onDisconnected(*voxlink.Event) {
	r.mu.Lock()
	r.partial.Reset()
	r.msgID = ""
	r.mu.Unlock()
}

func (r *Recorder) append(e Entry) {
	if e.ConversationID == "" {
		r.logger.DebugPrintf("dropping transcript entry before session confirmation")
		return
	}
	if err := r.store.Append(context.Background(), e); err != nil {
		r.logger.WarnPrintf("transcript append failed: %v", err)
	}
}
