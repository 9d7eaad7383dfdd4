package voxlink

import "sync"

// NewPipe creates an in-memory transport factory plus the server-side
// handle that drives it. Useful for tests and in-process simulation: the
// server accepts or rejects dials, injects inbound frames, records
// everything the client transmits, and can drop the link at will.
func NewPipe() (TransportFactory, *PipeServer) {
	srv := &PipeServer{}
	factory := func(cb TransportCallbacks) (Transport, error) {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		if srv.refuse != nil {
			return nil, srv.refuse
		}
		return &pipeTransport{srv: srv, callbacks: cb}, nil
	}
	return factory, srv
}

// PipeServer is the far end of a pipe transport pair.
type PipeServer struct {
	mu      sync.Mutex
	cb      TransportCallbacks
	cur     *pipeTransport
	dials   int
	sent    []string
	refuse  error
	pending bool
}

type pipeTransport struct {
	srv       *PipeServer
	callbacks TransportCallbacks

	mu     sync.Mutex
	closed bool
}

func (t *pipeTransport) Open(string) {
	t.srv.mu.Lock()
	t.srv.dials++
	t.srv.cur = t
	t.srv.cb = t.callbacks
	t.srv.pending = true
	t.srv.mu.Unlock()
}

func (t *pipeTransport) Send(text string) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.srv.mu.Lock()
	t.srv.sent = append(t.srv.sent, text)
	t.srv.mu.Unlock()
}

func (t *pipeTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

var _ Transport = (*pipeTransport)(nil)

// Accept completes the pending dial, firing OnOpen.
func (s *PipeServer) Accept() {
	s.mu.Lock()
	cb := s.cb
	s.pending = false
	s.mu.Unlock()
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
}

// Push delivers an inbound frame to the client.
func (s *PipeServer) Push(frameText string) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb.OnMessage != nil {
		cb.OnMessage(frameText)
	}
}

// Drop closes the link from the server side (unsolicited close).
func (s *PipeServer) Drop() {
	s.mu.Lock()
	cb := s.cb
	if s.cur != nil {
		s.cur.mu.Lock()
		s.cur.closed = true
		s.cur.mu.Unlock()
	}
	s.mu.Unlock()
	if cb.OnClose != nil {
		cb.OnClose()
	}
}

// Fail reports a transport error followed by a close.
func (s *PipeServer) Fail(err error) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
	if cb.OnClose != nil {
		cb.OnClose()
	}
}

// Refuse makes subsequent dials fail with err at creation time. Pass
// ErrTransportUnsupported to simulate an environment without sockets,
// or nil to accept dials again.
func (s *PipeServer) Refuse(err error) {
	s.mu.Lock()
	s.refuse = err
	s.mu.Unlock()
}

// Dials reports how many transports have been created.
func (s *PipeServer) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Sent returns a copy of every frame the client has transmitted.
func (s *PipeServer) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// TakeSent returns the transmitted frames and clears the record.
func (s *PipeServer) TakeSent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

// Pending reports whether a dial is waiting for Accept.
func (s *PipeServer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
