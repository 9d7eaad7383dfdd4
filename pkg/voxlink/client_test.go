package voxlink

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var testCreds = Credentials{
	APIKey:             "key-123",
	CharacterID:        "char-milo",
	PlayerID:           "player-7",
	PlaybackSampleRate: 16000,
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *PipeServer, *testClock) {
	t.Helper()
	factory, srv := NewPipe()
	clk := &testClock{now: time.Unix(1_700_000_000, 0)}
	base := []Option{
		WithTransport(factory),
		WithSendGap(20 * time.Millisecond),
		WithHandshakeTimeout(time.Second),
	}
	c := New(append(base, opts...)...)
	c.nowFn = clk.Now
	return c, srv, clk
}

// flush runs enough well-spaced ticks to drain the send queue.
func flush(c *Client, clk *testClock) {
	for i := 0; i < 10; i++ {
		clk.Advance(c.cfg.sendGap)
		c.tick(clk.now)
	}
}

// handshake walks the client through the full connect sequence.
func handshake(t *testing.T, c *Client, srv *PipeServer, clk *testClock) {
	t.Helper()
	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	srv.Accept()
	srv.Push(`0{"sid":"abc","pingInterval":25000}`)
	flush(c, clk)
	srv.Push("40/chat,")
	flush(c, clk)
	srv.Push(`42/chat,["session_info",{"sessionId":"sess-1","conversationId":"conv-1","characterId":"char-milo","playerId":"player-7"}]`)
	if got := c.State(); got != StateConnected {
		t.Fatalf("state after handshake = %v; want connected", got)
	}
}

func TestClient_ConnectValidation(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		creds Credentials
	}{
		{name: "missing server", url: "", creds: testCreds},
		{name: "missing character", url: "pipe://test", creds: Credentials{PlayerID: "p"}},
		{name: "missing player", url: "pipe://test", creds: Credentials{CharacterID: "c"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, srv, _ := newTestClient(t)
			err := c.Connect(tc.url, tc.creds)
			if err == nil {
				t.Fatal("Connect() expected error")
			}
			var ve *Error
			if !errors.As(err, &ve) || ve.Code != CodeInvalidConfig {
				t.Errorf("error = %v; want code %s", err, CodeInvalidConfig)
			}
			if got := c.State(); got != StateDisconnected {
				t.Errorf("state = %v; want disconnected (no state change on validation failure)", got)
			}
			if srv.Dials() != 0 {
				t.Error("validation failure must not touch the network")
			}
		})
	}
}

func TestClient_HappyPath(t *testing.T) {
	c, srv, clk := newTestClient(t)

	var connected int
	c.Subscribe(KindConnected, func(*Event) { connected++ })

	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if got := c.State(); got != StateConnecting {
		t.Fatalf("state = %v; want connecting", got)
	}

	srv.Accept()
	srv.Push(`0{"sid":"abc"}`)
	flush(c, clk)

	sent := srv.TakeSent()
	if len(sent) != 1 || sent[0] != "40/chat" {
		t.Fatalf("after control open, sent = %q; want [40/chat]", sent)
	}

	srv.Push("40/chat,")
	flush(c, clk)

	sent = srv.TakeSent()
	if len(sent) != 1 || !strings.HasPrefix(sent[0], `42/chat,["authenticate",`) {
		t.Fatalf("after join ack, sent = %q; want authenticate frame", sent)
	}
	for _, field := range []string{`"apiKey":"key-123"`, `"characterId":"char-milo"`, `"playerId":"player-7"`, `"playbackSampleRate":16000`} {
		if !strings.Contains(sent[0], field) {
			t.Errorf("authenticate frame missing %s: %s", field, sent[0])
		}
	}

	srv.Push(`42/chat,["session_info",{"sessionId":"sess-1","conversationId":"conv-1","characterId":"char-milo","playerId":"player-7"}]`)

	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected", got)
	}
	if connected != 1 {
		t.Errorf("connected notifications = %d; want 1", connected)
	}
	sess := c.Session()
	if sess == nil {
		t.Fatal("Session() = nil; want confirmed session")
	}
	if sess.SessionID != "sess-1" || sess.ConversationID != "conv-1" ||
		sess.CharacterID != "char-milo" || sess.PlayerID != "player-7" {
		t.Errorf("session = %+v; want server payload values", sess)
	}
}

func TestClient_CredentialsNeverBeforeJoinAck(t *testing.T) {
	c, srv, clk := newTestClient(t)
	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	srv.Accept()
	srv.Push(`0{}`)

	// However long the join ack takes, credentials stay queued behind it.
	for i := 0; i < 20; i++ {
		flush(c, clk)
	}
	for _, f := range srv.Sent() {
		if strings.Contains(f, "authenticate") {
			t.Fatalf("credentials transmitted before join ack: %s", f)
		}
	}

	srv.Push("40/chat,")
	flush(c, clk)
	var found bool
	for _, f := range srv.Sent() {
		if strings.Contains(f, "authenticate") {
			found = true
		}
	}
	if !found {
		t.Error("credentials not transmitted after join ack")
	}
}

func TestClient_Keepalive(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)
	srv.TakeSent()

	srv.Push("2")

	sent := srv.Sent()
	if len(sent) != 1 || sent[0] != "3" {
		t.Errorf("after ping, sent = %q; want [3]", sent)
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected (keepalive is not a state change)", got)
	}
}

func TestClient_MalformedEventDropped(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	var events int
	for kind := KindConnected; kind <= KindCameraCapture; kind++ {
		c.Subscribe(kind, func(*Event) { events++ })
	}

	srv.Push("42/chat,not-json")
	srv.Push(`42/chat,["bot_response",{"text":`)
	srv.Push("999garbage")

	if events != 0 {
		t.Errorf("events published = %d; want 0", events)
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected", got)
	}
}

func TestClient_UnknownEventIgnored(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	srv.Push(`42/chat,["shiny_new_feature",{"x":1}]`)

	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected", got)
	}
}

func TestClient_StaleAudioAfterInterrupt(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	var voices []string
	var interrupts []string
	c.Subscribe(KindBotVoice, func(ev *Event) { voices = append(voices, ev.BotVoice.MessageID) })
	c.Subscribe(KindInterrupt, func(ev *Event) { interrupts = append(interrupts, ev.Interrupt.MessageID) })

	srv.Push(`42/chat,["bot_voice",{"audio":"AAAA","sampleRate":16000,"messageId":"M1"}]`)
	srv.Push(`42/chat,["interrupt",{"reason":"user_speech"}]`)
	srv.Push(`42/chat,["bot_voice",{"audio":"AAAA","sampleRate":16000,"messageId":"M1"}]`)
	srv.Push(`42/chat,["bot_voice",{"audio":"AAAA","sampleRate":16000,"messageId":"M2"}]`)

	if want := []string{"M1", "M2"}; len(voices) != 2 || voices[0] != want[0] || voices[1] != want[1] {
		t.Errorf("surfaced voice fragments = %v; want %v", voices, want)
	}
	// The interrupt carried no id; it resolves to the current message.
	if len(interrupts) != 1 || interrupts[0] != "M1" {
		t.Errorf("interrupts = %v; want [M1]", interrupts)
	}
}

func TestClient_PayloadlessInterruptFrame(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	var voices []string
	var interrupts []string
	c.Subscribe(KindBotVoice, func(ev *Event) { voices = append(voices, ev.BotVoice.MessageID) })
	c.Subscribe(KindInterrupt, func(ev *Event) { interrupts = append(interrupts, ev.Interrupt.MessageID) })

	// Both interrupt fields are optional; the bare frame must still cut
	// off the current response.
	srv.Push(`42/chat,["bot_voice",{"audio":"AAAA","sampleRate":16000,"messageId":"M1"}]`)
	srv.Push(`42/chat,["interrupt"]`)
	srv.Push(`42/chat,["bot_voice",{"audio":"AAAA","sampleRate":16000,"messageId":"M1"}]`)

	if len(interrupts) != 1 || interrupts[0] != "M1" {
		t.Errorf("interrupts = %v; want [M1] (resolved to the current message)", interrupts)
	}
	if len(voices) != 1 || voices[0] != "M1" {
		t.Errorf("surfaced voice fragments = %v; want [M1] (post-interrupt audio discarded)", voices)
	}
}

func TestClient_DuplicateHandshakeFramesIgnored(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)
	flush(c, clk)
	srv.TakeSent()

	// A replayed control open or join ack after the session is confirmed
	// must not restart the handshake.
	srv.Push(`0{"sid":"dup"}`)
	srv.Push("40/chat,")
	flush(c, clk)

	if sent := srv.TakeSent(); len(sent) != 0 {
		t.Errorf("sent after duplicate handshake frames = %q; want none", sent)
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected", got)
	}
}

func TestClient_ReconnectBound(t *testing.T) {
	const maxAttempts = 3
	c, srv, clk := newTestClient(t, WithMaxReconnects(maxAttempts))
	handshake(t, c, srv, clk)

	var drops int
	var errCodes []string
	c.Subscribe(KindDisconnected, func(*Event) { drops++ })
	c.Subscribe(KindError, func(ev *Event) { errCodes = append(errCodes, ev.Err.Code) })

	for i := 0; i < maxAttempts; i++ {
		srv.Drop()
	}

	if got := c.State(); got != StateError {
		t.Errorf("state after %d drops = %v; want error", maxAttempts, got)
	}
	if drops != maxAttempts {
		t.Errorf("disconnected notifications = %d; want %d", drops, maxAttempts)
	}
	if len(errCodes) != 1 || errCodes[0] != CodeReconnectExhausted {
		t.Errorf("error codes = %v; want [%s]", errCodes, CodeReconnectExhausted)
	}
	// Initial dial plus one redial per non-final drop.
	if got := srv.Dials(); got != maxAttempts {
		t.Errorf("dials = %d; want %d", got, maxAttempts)
	}

	// Terminal until an explicit new connect.
	srv.Drop()
	flush(c, clk)
	if got := srv.Dials(); got != maxAttempts {
		t.Errorf("dials after terminal error = %d; want %d", got, maxAttempts)
	}
	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("explicit Connect() after error: %v", err)
	}
	if got := srv.Dials(); got != maxAttempts+1 {
		t.Errorf("dials after explicit connect = %d; want %d", got, maxAttempts+1)
	}
}

func TestClient_SessionClearedOnDrop(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	srv.Drop()

	if c.Session() != nil {
		t.Error("session must be cleared on unsolicited close")
	}
}

func TestClient_WatchdogForcesReconnect(t *testing.T) {
	c, srv, clk := newTestClient(t, WithHandshakeTimeout(500*time.Millisecond))
	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	srv.Accept() // transport open arms the watchdog; handshake then stalls

	var drops int
	c.Subscribe(KindDisconnected, func(*Event) { drops++ })

	clk.Advance(600 * time.Millisecond)
	c.tick(clk.now)

	if drops != 1 {
		t.Errorf("disconnected notifications = %d; want 1", drops)
	}
	if got := srv.Dials(); got != 2 {
		t.Errorf("dials = %d; want 2 (watchdog expiry redials)", got)
	}
	if got := c.State(); got != StateConnecting {
		t.Errorf("state = %v; want connecting", got)
	}
}

func TestClient_TransportUnsupported(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Refuse(ErrTransportUnsupported)

	err := c.Connect("pipe://test", testCreds)
	if !errors.Is(err, ErrTransportUnsupported) {
		t.Fatalf("Connect() error = %v; want ErrTransportUnsupported", err)
	}
	if got := c.State(); got != StateError {
		t.Errorf("state = %v; want error (permanent, no retries)", got)
	}
	if srv.Dials() != 0 {
		t.Error("unsupported transport must not be dialed")
	}
}

func TestClient_AuthRejected(t *testing.T) {
	c, srv, clk := newTestClient(t)

	var codes []string
	c.Subscribe(KindError, func(ev *Event) { codes = append(codes, ev.Err.Code) })

	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	srv.Accept()
	srv.Push(`0{}`)
	flush(c, clk)
	srv.Push("40/chat,")
	flush(c, clk)
	srv.Push(`42/chat,["auth_error",{"message":"invalid api key"}]`)

	if got := c.State(); got != StateError {
		t.Errorf("state = %v; want error", got)
	}
	if len(codes) != 1 || codes[0] != CodeAuthRejected {
		t.Errorf("error codes = %v; want [%s]", codes, CodeAuthRejected)
	}
	// Auth rejection never triggers automatic reconnection.
	flush(c, clk)
	if got := srv.Dials(); got != 1 {
		t.Errorf("dials = %d; want 1", got)
	}
}

func TestClient_JoinRejected(t *testing.T) {
	c, srv, clk := newTestClient(t)
	if err := c.Connect("pipe://test", testCreds); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	srv.Accept()
	srv.Push(`0{}`)
	flush(c, clk)
	srv.Push(`44{"message":"namespace closed"}`)

	if got := c.State(); got != StateError {
		t.Errorf("state = %v; want error", got)
	}
}

func TestClient_Disconnect(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)
	srv.TakeSent()

	var drops int
	c.Subscribe(KindDisconnected, func(*Event) { drops++ })

	c.Disconnect()

	sent := srv.Sent()
	if len(sent) == 0 || sent[len(sent)-1] != "41/chat" {
		t.Errorf("sent = %q; want trailing best-effort leave frame 41/chat", sent)
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("state = %v; want disconnected", got)
	}
	if c.Session() != nil {
		t.Error("session must be cleared on disconnect")
	}
	if drops != 1 {
		t.Errorf("disconnected notifications = %d; want 1", drops)
	}

	// Explicit disconnect never auto-reconnects.
	flush(c, clk)
	if got := srv.Dials(); got != 1 {
		t.Errorf("dials = %d; want 1", got)
	}
}

func TestClient_PacingInvariant(t *testing.T) {
	c, srv, clk := newTestClient(t) // 20ms gap
	handshake(t, c, srv, clk)
	srv.TakeSent()

	for i := 0; i < 5; i++ {
		if err := c.SendText("burst"); err != nil {
			t.Fatalf("SendText() error: %v", err)
		}
	}

	// Tick far faster than the gap and record when frames hit the wire.
	var sendTimes []time.Time
	last := 0
	for i := 0; i < 60; i++ {
		clk.Advance(5 * time.Millisecond)
		c.tick(clk.now)
		if n := len(srv.Sent()); n > last {
			last = n
			sendTimes = append(sendTimes, clk.now)
		}
	}

	if len(sendTimes) != 5 {
		t.Fatalf("transmitted %d frames; want 5", len(sendTimes))
	}
	for i := 1; i < len(sendTimes); i++ {
		if gap := sendTimes[i].Sub(sendTimes[i-1]); gap < c.cfg.sendGap {
			t.Errorf("frames %d and %d only %v apart; want >= %v", i-1, i, gap, c.cfg.sendGap)
		}
	}
}

func TestClient_SendAudioHygiene(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)
	srv.TakeSent()

	if err := c.SendAudio("AA\nAA "); err != nil {
		t.Fatalf("SendAudio() error: %v", err)
	}
	flush(c, clk)
	sent := srv.TakeSent()
	if len(sent) != 1 || !strings.Contains(sent[0], `"audio":"AAAA"`) {
		t.Errorf("sent = %q; want cleaned stream_audio frame", sent)
	}

	// A chunk that is empty after cleaning produces no frame at all.
	if err := c.SendAudio("!!!\x00"); err != nil {
		t.Fatalf("SendAudio() error: %v", err)
	}
	flush(c, clk)
	if sent := srv.TakeSent(); len(sent) != 0 {
		t.Errorf("sent = %q; want none for unusable chunk", sent)
	}
}

func TestClient_SendWhileNotConnected(t *testing.T) {
	c, _, _ := newTestClient(t)
	if err := c.SendText("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendText() error = %v; want ErrNotConnected", err)
	}
	if err := c.SendAudio("AAAA"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAudio() error = %v; want ErrNotConnected", err)
	}
}

func TestClient_ServerNoticesAreInformational(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	var errs, quotas int
	c.Subscribe(KindError, func(*Event) { errs++ })
	c.Subscribe(KindQuotaExceeded, func(*Event) { quotas++ })

	srv.Push(`42/chat,["error",{"message":"minor hiccup"}]`)
	srv.Push(`42/chat,["quota_exceeded",{"message":"monthly limit reached"}]`)

	if errs != 1 || quotas != 1 {
		t.Errorf("errs=%d quotas=%d; want 1 and 1", errs, quotas)
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v; want connected (notices never drop the link)", got)
	}
}

func TestClient_CameraCaptureRoundTrip(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)
	srv.TakeSent()

	var req *CameraCapture
	c.Subscribe(KindCameraCapture, func(ev *Event) { req = ev.CameraCapture })

	srv.Push(`42/chat,["camera_capture",{"requestId":"req-9","text":"what do you see?"}]`)
	if req == nil || req.RequestID != "req-9" {
		t.Fatalf("capture request = %+v; want requestId req-9", req)
	}

	if err := c.SendCameraImage(CameraImage{
		ImageBase64: "aW1n",
		MimeType:    "image/jpeg",
		RequestID:   req.RequestID,
	}); err != nil {
		t.Fatalf("SendCameraImage() error: %v", err)
	}
	flush(c, clk)

	sent := srv.TakeSent()
	if len(sent) != 1 || !strings.Contains(sent[0], `"requestId":"req-9"`) {
		t.Errorf("sent = %q; want camera_image echoing the request id", sent)
	}
	if !strings.Contains(sent[0], `"sampleRate":16000`) {
		t.Errorf("camera_image should inherit the credential playback rate: %s", sent[0])
	}
}

func TestClient_PartialResponse(t *testing.T) {
	c, srv, clk := newTestClient(t)
	handshake(t, c, srv, clk)

	srv.Push(`42/chat,["bot_response",{"text":"once upon ","messageId":"M1"}]`)
	srv.Push(`42/chat,["bot_response",{"text":"a time","messageId":"M1"}]`)

	if got := c.PartialResponse(); got != "once upon a time" {
		t.Errorf("PartialResponse() = %q; want %q", got, "once upon a time")
	}

	srv.Push(`42/chat,["interrupt",{"messageId":"M1"}]`)
	if got := c.PartialResponse(); got != "" {
		t.Errorf("PartialResponse() = %q; want empty after interrupt", got)
	}
}
