package transcript_test

import (
	"context"
	"testing"
	"time"

	"github.com/voxpal/voxpal-go/pkg/transcript"
	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

// connect drives a pipe-backed client through the full handshake so the
// recorder sees a confirmed session.
func connect(t *testing.T) (*voxlink.Client, *voxlink.PipeServer) {
	t.Helper()
	factory, srv := voxlink.NewPipe()
	c := voxlink.New(
		voxlink.WithTransport(factory),
		voxlink.WithSendGap(time.Millisecond),
	)
	err := c.Connect("pipe://test", voxlink.Credentials{
		CharacterID: "char-1",
		PlayerID:    "player-1",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	srv.Accept()
	srv.Push(`0{}`)
	for i := 0; i < 5; i++ {
		time.Sleep(2 * time.Millisecond)
		c.Tick()
	}
	srv.Push("40/chat,")
	srv.Push(`42/chat,["session_info",{"sessionId":"s1","conversationId":"conv-1","characterId":"char-1","playerId":"player-1"}]`)
	if got := c.State(); got != voxlink.StateConnected {
		t.Fatalf("state = %v, want connected", got)
	}
	return c, srv
}

func TestRecorder_CapturesUtterances(t *testing.T) {
	ctx := context.Background()
	c, srv := connect(t)
	store := transcript.NewMemory()
	rec := transcript.NewRecorder(store, c, nil)
	defer rec.Close()

	// Interim transcripts are noise; only finals are utterances.
	srv.Push(`42/chat,["stt_response",{"text":"tell me","isFinal":false}]`)
	srv.Push(`42/chat,["stt_response",{"text":"tell me a story","isFinal":true}]`)

	// A response streams in as fragments and completes.
	srv.Push(`42/chat,["bot_response",{"text":"once upon ","messageId":"m1"}]`)
	srv.Push(`42/chat,["bot_response",{"text":"a time","messageId":"m1","isFinal":true}]`)

	got, err := store.Entries(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got[0].Speaker != transcript.SpeakerPlayer || got[0].Text != "tell me a story" {
		t.Errorf("entry 0 = %+v, want final player transcript", got[0])
	}
	if got[1].Speaker != transcript.SpeakerCharacter || got[1].Text != "once upon a time" {
		t.Errorf("entry 1 = %+v, want assembled character response", got[1])
	}
	if got[1].MessageID != "m1" || got[1].Interrupted {
		t.Errorf("entry 1 = %+v, want messageId m1, not interrupted", got[1])
	}
}

func TestRecorder_InterruptFlushesPartial(t *testing.T) {
	ctx := context.Background()
	c, srv := connect(t)
	store := transcript.NewMemory()
	rec := transcript.NewRecorder(store, c, nil)
	defer rec.Close()

	srv.Push(`42/chat,["bot_response",{"text":"let me think","messageId":"m1"}]`)
	srv.Push(`42/chat,["interrupt",{"messageId":"m1","reason":"user_speech"}]`)

	got, err := store.Entries(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if !got[0].Interrupted || got[0].Text != "let me think" {
		t.Errorf("entry = %+v, want interrupted partial", got[0])
	}

	// An interrupt with nothing streamed in records nothing.
	srv.Push(`42/chat,["interrupt",{}]`)
	got, _ = store.Entries(ctx, "conv-1")
	if len(got) != 1 {
		t.Errorf("empty interrupt recorded an entry: %+v", got)
	}
}

func TestRecorder_CloseDetaches(t *testing.T) {
	ctx := context.Background()
	c, srv := connect(t)
	store := transcript.NewMemory()
	rec := transcript.NewRecorder(store, c, nil)
	rec.Close()

	srv.Push(`42/chat,["stt_response",{"text":"hello","isFinal":true}]`)

	if _, err := store.Entries(ctx, "conv-1"); err == nil {
		t.Error("detached recorder still wrote entries")
	}
}
