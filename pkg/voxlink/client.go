package voxlink

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Client defaults.
const (
	// DefaultHandshakeTimeout is how long the multi-step handshake may
	// stall after the transport opens before the watchdog forces a
	// reconnect.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxReconnects bounds consecutive automatic reconnect
	// attempts after unsolicited closes.
	DefaultMaxReconnects = 3
)

// clientConfig holds the client configuration.
type clientConfig struct {
	namespace        string
	queueLimit       int
	sendGap          time.Duration
	handshakeTimeout time.Duration
	maxReconnects    int
	autoReconnect    bool
	logger           Logger
	factory          TransportFactory
}

// Option configures the Client.
type Option func(*clientConfig)

// WithNamespace overrides the event-layer namespace (default "/chat").
func WithNamespace(ns string) Option {
	return func(c *clientConfig) { c.namespace = ns }
}

// WithQueueLimit sets the outbound queue capacity for audio frames.
func WithQueueLimit(n int) Option {
	return func(c *clientConfig) { c.queueLimit = n }
}

// WithSendGap sets the minimum time between two socket writes.
func WithSendGap(gap time.Duration) Option {
	return func(c *clientConfig) { c.sendGap = gap }
}

// WithHandshakeTimeout sets the handshake watchdog timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.handshakeTimeout = d }
}

// WithMaxReconnects bounds automatic reconnect attempts.
func WithMaxReconnects(n int) Option {
	return func(c *clientConfig) { c.maxReconnects = n }
}

// WithAutoReconnect enables or disables automatic reconnection after
// unsolicited closes. Enabled by default.
func WithAutoReconnect(enabled bool) Option {
	return func(c *clientConfig) { c.autoReconnect = enabled }
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithTransport injects the transport factory. Defaults to the websocket
// transport; embedded hosts wrap their native socket primitive instead.
func WithTransport(f TransportFactory) Option {
	return func(c *clientConfig) { c.factory = f }
}

// New creates a session client. The client owns no timer; drive it with
// Tick on a steady cadence or hand it to Run.
func New(opts ...Option) *Client {
	cfg := clientConfig{
		namespace:        DefaultNamespace,
		queueLimit:       DefaultQueueLimit,
		sendGap:          DefaultSendGap,
		handshakeTimeout: DefaultHandshakeTimeout,
		maxReconnects:    DefaultMaxReconnects,
		autoReconnect:    true,
		logger:           DefaultLogger(),
		factory:          WebSocketTransport(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		cfg:   cfg,
		nowFn: time.Now,
		sched: newSendScheduler(cfg.queueLimit, cfg.sendGap),
	}
	c.disp = newDispatcher(cfg.logger)
	return c
}

// Connect starts establishing a session. It validates the configuration
// synchronously and returns without waiting for the handshake; progress is
// observed through KindConnected / KindError events and State.
//
// Credentials are captured here and reused unchanged across automatic
// reconnects of the same logical session.
func (c *Client) Connect(serverURL string, creds Credentials) error {
	if serverURL == "" {
		return newError(CodeInvalidConfig, "server address is required")
	}
	if creds.CharacterID == "" {
		return newError(CodeInvalidConfig, "character id is required")
	}
	if creds.PlayerID == "" {
		return newError(CodeInvalidConfig, "player id is required")
	}

	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateReconnecting, StateConnected:
		c.mu.Unlock()
		return newError(CodeInvalidConfig, "connect while %s", c.state)
	}
	c.serverURL = serverURL
	c.creds = creds
	c.attempts = 0
	c.state = StateConnecting
	err := c.openTransportLocked()
	if err != nil && c.state != StateError {
		// Ordinary creation failure at connect time: no link was ever
		// up, so nothing to retry. The caller decides what to do.
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	return err
}

// Disconnect tears the session down immediately. A namespace-disconnect
// frame is sent best-effort; an already-queued outbound frame may or may
// not have reached the wire.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++ // old transport callbacks are stale from here on
	if c.transport != nil {
		c.transport.Send(sanitizeFrame(encodeLeave(c.cfg.namespace)))
		c.transport.Close()
		c.transport = nil
	}
	prev := c.state
	c.state = StateDisconnected
	c.session = nil
	c.attempts = 0
	c.watchdog = time.Time{}
	c.sched.reset()
	c.corr.reset()
	c.mu.Unlock()

	if prev == StateConnected || prev == StateConnecting || prev == StateReconnecting {
		c.disp.publish(&Event{Kind: KindDisconnected})
	}
}

// SendText sends a user text message.
func (c *Client) SendText(text string) error {
	return c.enqueueEvent(eventText, map[string]any{"text": text}, categoryEvent)
}

// SendAudio sends one base64 PCM16 mono chunk of microphone audio. Bytes
// outside the base64 alphabet are stripped and padding is fixed up before
// transmission; a chunk that is empty after cleaning is dropped silently.
func (c *Client) SendAudio(base64Chunk string) error {
	clean := cleanBase64(base64Chunk)
	if clean == "" {
		return nil
	}
	return c.enqueueEvent(eventStreamAudio, map[string]any{"audio": clean}, categoryAudio)
}

// StartVoice tells the server a continuous voice stream begins.
func (c *Client) StartVoice() error {
	return c.enqueueEvent(eventStartVoice, nil, categoryEvent)
}

// StopVoice ends the voice stream.
func (c *Client) StopVoice() error {
	return c.enqueueEvent(eventStopVoice, nil, categoryEvent)
}

// NotifyPlaybackComplete tells the server the client finished playing the
// buffered bot audio.
func (c *Client) NotifyPlaybackComplete() error {
	return c.enqueueEvent(eventAudioPlaybackComplete, nil, categoryEvent)
}

// UpdatePreferences pushes an arbitrary preference map to the server.
func (c *Client) UpdatePreferences(prefs map[string]any) error {
	return c.enqueueEvent(eventUpdatePreferences, prefs, categoryEvent)
}

// SendCameraImage sends an encoded camera frame, typically in reply to a
// KindCameraCapture request. A missing RequestID is assigned; a zero
// SampleRate inherits the credential playback rate.
func (c *Client) SendCameraImage(img CameraImage) error {
	if img.RequestID == "" {
		img.RequestID = uuid.New().String()
	}
	c.mu.Lock()
	if img.SampleRate == 0 {
		img.SampleRate = c.creds.PlaybackSampleRate
	}
	c.mu.Unlock()
	return c.enqueueEvent(eventCameraImage, img, categoryEvent)
}

// SendVisionPending tells the server a capture request was accepted and an
// image is on the way.
func (c *Client) SendVisionPending(text, requestID string) error {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	payload := map[string]any{"text": text, "requestId": requestID}
	return c.enqueueEvent(eventVisionPending, payload, categoryEvent)
}

// Subscribe registers a handler for one event kind. Handlers run
// synchronously in arrival order; a panicking handler never blocks the
// others.
func (c *Client) Subscribe(kind EventKind, h Handler) Subscription {
	return c.disp.subscribe(kind, h)
}

// Unsubscribe removes a previously registered handler.
func (c *Client) Unsubscribe(sub Subscription) {
	c.disp.unsubscribe(sub)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the confirmed session, or nil while not connected.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// PartialResponse returns the accumulated text of the response currently
// streaming in. Cleared on interrupt and on disconnect.
func (c *Client) PartialResponse() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.corr.partialText()
}

// Tick advances the engine: it checks the handshake watchdog and transmits
// at most one queued frame. The caller must invoke it on a steady cadence;
// pacing and timeout guarantees are only as precise as that cadence.
func (c *Client) Tick() {
	c.tick(c.nowFn())
}

// Run drives Tick from a ticker until ctx is cancelled. interval should be
// well under the send gap, on the order of tens of milliseconds.
func (c *Client) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
