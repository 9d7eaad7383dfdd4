package voxlink

// TransportCallbacks is how a Transport notifies the engine. All callbacks
// must be invoked from at most one goroutine at a time and never from
// inside Open or Send; the engine assumes notifications are asynchronous.
type TransportCallbacks struct {
	// OnOpen fires when the socket is established.
	OnOpen func()

	// OnMessage delivers one inbound text frame.
	OnMessage func(text string)

	// OnClose fires when the socket closes for any reason, after OnError
	// if an error caused it. It fires at most once.
	OnClose func()

	// OnError reports a transport-level failure.
	OnError func(err error)
}

// Transport is the raw socket port underneath the session engine. The
// engine never discovers transports; the caller injects a factory at
// construction time.
type Transport interface {
	// Open starts establishing the socket. It must not block and must not
	// invoke callbacks synchronously; success or failure arrives via
	// OnOpen / OnError / OnClose.
	Open(url string)

	// Send transmits one text frame, fire and forget. Errors surface via
	// OnError or OnClose; the caller gets no per-frame acknowledgement.
	//
	// Most writes arrive through the paced outbound queue. Keepalive pong
	// replies are the exception: the engine writes them directly, so a
	// pong may land closer than the send gap to the preceding frame. The
	// pacing clock still advances, keeping later writes spaced.
	Send(text string)

	// Close tears the socket down. Idempotent.
	Close()
}

// TransportFactory creates a Transport wired to the given callbacks. One
// transport is created per connection attempt. Returning an error wrapping
// ErrTransportUnsupported marks the environment as permanently unable to
// carry this protocol; the engine goes to StateError without retrying.
type TransportFactory func(cb TransportCallbacks) (Transport, error)
