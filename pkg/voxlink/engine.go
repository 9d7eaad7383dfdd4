package voxlink

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Client is a realtime session to the character backend. One instance owns
// one logical session; multiplexing across characters means multiple
// clients, keyed by the caller.
//
// All mutable state lives behind one mutex. Transport callbacks, ticks and
// public calls each mutate state synchronously within a single invocation;
// subscriber handlers run after the lock is released so they may call back
// into the client.
type Client struct {
	cfg   clientConfig
	nowFn func() time.Time
	disp  *dispatcher

	mu        sync.Mutex
	state     ConnectionState
	session   *Session
	creds     Credentials
	serverURL string
	transport Transport
	sched     *sendScheduler
	corr      responseCorrelator
	attempts  int
	watchdog  time.Time // handshake deadline; zero while disarmed
	gen       int       // connection generation; stale callbacks carry an old one
}

// openTransportLocked creates a transport for the current generation and
// starts opening it. A factory error wrapping ErrTransportUnsupported is
// permanent: the environment has no socket to offer, so the state goes to
// Error with no retry.
func (c *Client) openTransportLocked() error {
	c.gen++
	gen := c.gen
	cb := TransportCallbacks{
		OnOpen:    func() { c.onOpen(gen) },
		OnMessage: func(text string) { c.onMessage(gen, text) },
		OnClose:   func() { c.onClose(gen) },
		OnError:   func(err error) { c.onError(gen, err) },
	}
	t, err := c.cfg.factory(cb)
	if err != nil {
		if errors.Is(err, ErrTransportUnsupported) {
			c.state = StateError
			c.cfg.logger.ErrorPrintf("transport unavailable, giving up: %v", err)
			return err
		}
		// Creation failed for an ordinary reason; treat like a dropped
		// link so the bounded retry policy applies.
		c.cfg.logger.WarnPrintf("transport creation failed: %v", err)
		return err
	}
	c.transport = t
	c.watchdog = time.Time{}
	t.Open(c.serverURL)
	return nil
}

// onOpen arms the handshake watchdog. The connection state is still
// Connecting; only the session confirmation flips it to Connected.
func (c *Client) onOpen(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateConnecting {
		return
	}
	c.watchdog = c.nowFn().Add(c.cfg.handshakeTimeout)
	c.cfg.logger.DebugPrintf("transport open, awaiting handshake")
}

// onMessage decodes one inbound frame and advances the handshake or
// dispatches the event. Decode failures are logged and dropped; nothing a
// peer sends may take the engine down.
func (c *Client) onMessage(gen int, text string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	f, err := decodeFrame(text)
	if err != nil {
		c.cfg.logger.WarnPrintf("dropping malformed frame: %v", err)
		c.mu.Unlock()
		return
	}

	var evs []*Event
	switch f.kind {
	case packetOpen:
		if c.state != StateConnecting {
			c.cfg.logger.WarnPrintf("ignoring open frame while %s", c.state)
			break
		}
		// Control channel is up; join the namespace. Credentials are
		// deliberately absent here — they follow as a separate event
		// once the join is acknowledged, so the join itself is never
		// blocked on auth processing.
		c.sched.enqueue(outboundFrame{
			data:     sanitizeFrame(encodeJoin(c.cfg.namespace)),
			category: categoryControl,
		})

	case packetPing:
		// Keepalive replies must not queue behind audio; reply now and
		// let the scheduler account for the write.
		if c.transport != nil {
			c.transport.Send(tokenPong)
			c.sched.markSent(c.nowFn())
		}

	case packetJoined:
		if c.state != StateConnecting {
			c.cfg.logger.WarnPrintf("ignoring join ack while %s", c.state)
			break
		}
		c.watchdog = time.Time{}
		evs = c.enqueueAuthLocked()

	case packetJoinError:
		var notice ServerNotice
		if err := json.Unmarshal(f.payload, &notice); err != nil {
			notice.Message = string(f.payload)
		}
		evs = c.failLocked(newError(CodeJoinRejected, "namespace join rejected: %s", notice.Message))

	case packetEvent:
		evs = c.handleEventLocked(f)

	case packetPong:
		// Not used by this client as a received frame.

	default:
		c.cfg.logger.WarnPrintf("ignoring frame with unknown prefix: %.16q", text)
	}
	c.mu.Unlock()

	c.publishAll(evs)
}

// enqueueAuthLocked queues the deferred authentication event right after
// the namespace join is acknowledged.
func (c *Client) enqueueAuthLocked() []*Event {
	data, err := encodeEvent(c.cfg.namespace, eventAuthenticate, c.creds)
	if err != nil {
		return c.failLocked(newError(CodeInvalidConfig, "encode credentials: %v", err))
	}
	c.sched.enqueue(outboundFrame{data: data, category: categoryEvent})
	c.cfg.logger.DebugPrintf("namespace joined, credentials queued")
	return nil
}

// handleEventLocked turns an application event frame into typed events for
// the dispatcher. Unknown names and malformed payloads are logged and
// dropped.
func (c *Client) handleEventLocked(f *frame) []*Event {
	switch f.name {
	case eventSessionInfo:
		var s Session
		if !c.parsePayload(f, &s) {
			return nil
		}
		c.session = &s
		c.state = StateConnected
		c.attempts = 0
		c.watchdog = time.Time{}
		c.cfg.logger.InfoPrintf("session confirmed: %s", s.SessionID)
		return []*Event{
			{Kind: KindSessionInfo, SessionInfo: &s},
			{Kind: KindConnected, SessionInfo: &s},
		}

	case eventBotResponse:
		var b BotResponse
		if !c.parsePayload(f, &b) {
			return nil
		}
		c.corr.observeText(b.MessageID, b.Text)
		return []*Event{{Kind: KindBotResponse, BotResponse: &b}}

	case eventBotVoice:
		var v BotVoice
		if !c.parsePayload(f, &v) {
			return nil
		}
		if !c.corr.observeAudio(v.MessageID) {
			c.cfg.logger.DebugPrintf("discarding stale audio for interrupted message %s", v.MessageID)
			return nil
		}
		v.decode()
		return []*Event{{Kind: KindBotVoice, BotVoice: &v}}

	case eventSTTResponse:
		var t Transcript
		if !c.parsePayload(f, &t) {
			return nil
		}
		return []*Event{{Kind: KindTranscript, Transcript: &t}}

	case eventInterrupt:
		// Both fields are optional; a payload-less interrupt still cuts
		// off whatever response is streaming in.
		var i Interrupt
		if len(f.payload) > 0 && !c.parsePayload(f, &i) {
			return nil
		}
		i.MessageID = c.corr.interrupt(i.MessageID)
		return []*Event{{Kind: KindInterrupt, Interrupt: &i}}

	case eventAuthError:
		var notice ServerNotice
		if !c.parsePayload(f, &notice) {
			notice.Message = "authentication rejected"
		}
		return c.failLocked(newError(CodeAuthRejected, "%s", notice.Message))

	case eventError:
		var notice ServerNotice
		if !c.parsePayload(f, &notice) {
			return nil
		}
		// Informational; the connection state is unaffected.
		return []*Event{{
			Kind:   KindError,
			Notice: &notice,
			Err:    newError(CodeServer, "%s", notice.Message),
		}}

	case eventQuotaExceeded:
		var notice ServerNotice
		if !c.parsePayload(f, &notice) {
			return nil
		}
		return []*Event{{Kind: KindQuotaExceeded, Notice: &notice}}

	case eventCameraCapture:
		var req CameraCapture
		if !c.parsePayload(f, &req) {
			return nil
		}
		return []*Event{{Kind: KindCameraCapture, CameraCapture: &req}}

	default:
		c.cfg.logger.InfoPrintf("ignoring unknown event %q", f.name)
		return nil
	}
}

// parsePayload unmarshals an event payload, logging and absorbing failures.
func (c *Client) parsePayload(f *frame, dst any) bool {
	if len(f.payload) == 0 {
		return false
	}
	if err := json.Unmarshal(f.payload, dst); err != nil {
		c.cfg.logger.WarnPrintf("dropping %s event with malformed payload: %v", f.name, err)
		return false
	}
	return true
}

// failLocked is the fatal path: tear the transport down, go to StateError
// and surface the cause. No automatic reconnect follows; only an explicit
// Connect resets the counter.
func (c *Client) failLocked(cause *Error) []*Event {
	c.gen++
	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	c.state = StateError
	c.session = nil
	c.watchdog = time.Time{}
	c.sched.reset()
	c.corr.reset()
	c.cfg.logger.ErrorPrintf("%s", cause.Message)
	return []*Event{{Kind: KindError, Err: cause}}
}

// onError logs a transport failure. The teardown and retry happen in
// onClose, which the transport fires right after.
func (c *Client) onError(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.cfg.logger.WarnPrintf("transport error: %v", err)
}

// onClose handles an unsolicited transport close.
func (c *Client) onClose(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	evs := c.dropLocked()
	c.mu.Unlock()
	c.publishAll(evs)
}

// dropLocked is the recoverable-loss path shared by unsolicited closes,
// transport errors and watchdog expiry: clear the session, notify, and
// retry immediately while attempts remain. There is no backoff; the
// attempt bound is what keeps reconnect storms short.
func (c *Client) dropLocked() []*Event {
	if c.state == StateDisconnected || c.state == StateError {
		return nil
	}
	c.gen++
	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	c.watchdog = time.Time{}
	c.sched.reset()
	c.corr.reset()
	c.session = nil

	evs := []*Event{{Kind: KindDisconnected}}

	if !c.cfg.autoReconnect {
		c.state = StateDisconnected
		return evs
	}

	c.state = StateReconnecting
	c.attempts++
	if c.attempts >= c.cfg.maxReconnects {
		c.state = StateError
		err := newError(CodeReconnectExhausted, "giving up after %d reconnect attempts", c.attempts)
		c.cfg.logger.ErrorPrintf("%s", err.Message)
		return append(evs, &Event{Kind: KindError, Err: err})
	}

	c.cfg.logger.InfoPrintf("link lost, reconnect attempt %d/%d", c.attempts, c.cfg.maxReconnects)
	c.state = StateConnecting
	if err := c.openTransportLocked(); err != nil {
		c.state = StateError
		return append(evs, &Event{Kind: KindError, Err: newError(CodeTransport, "%v", err)})
	}
	return evs
}

// tick checks the watchdog and drains at most one frame.
func (c *Client) tick(now time.Time) {
	c.mu.Lock()

	var evs []*Event
	if !c.watchdog.IsZero() && now.After(c.watchdog) {
		c.watchdog = time.Time{}
		c.cfg.logger.WarnPrintf("handshake stalled, forcing reconnect")
		evs = c.dropLocked()
	}

	if f, ok := c.sched.drain(now); ok {
		if c.transport != nil {
			c.transport.Send(f.data)
		}
	}
	c.mu.Unlock()

	c.publishAll(evs)
}

// enqueueEvent encodes and queues one outbound application event.
// Serialization failures are local: logged, absorbed, never surfaced as a
// protocol error.
func (c *Client) enqueueEvent(name string, payload any, cat frameCategory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	data, err := encodeEvent(c.cfg.namespace, name, payload)
	if err != nil {
		c.cfg.logger.WarnPrintf("dropping outbound %s event: %v", name, err)
		return nil
	}
	c.sched.enqueue(outboundFrame{data: data, category: cat})
	return nil
}

func (c *Client) publishAll(evs []*Event) {
	for _, ev := range evs {
		c.disp.publish(ev)
	}
}
