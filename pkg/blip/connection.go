package blip

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/log"
	"github.com/cuemby/veyradb/pkg/varint"
)

// Handler answers an incoming request. A nil return (or req.Flags
// carrying NoReply) sends no response frame at all.
type Handler func(req *Message) *Message

// Connection is one BLIP session: a single persistent io.ReadWriter
// carrying interleaved request/response frames in both directions.
// Responses for requests from the same sender arrive in request order;
// requests from different senders may interleave arbitrarily, so
// dispatch keys reassembly by (messageNo, isResponse) rather than
// messageNo alone.
type Connection struct {
	rw io.ReadWriter

	writeMu sync.Mutex
	nextNo  atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]chan *Message
	partial  map[reassemblyKey]*reassembly
	handlers map[string]Handler

	closed chan struct{}
	once   sync.Once
}

type reassemblyKey struct {
	messageNo uint64
	response  bool
}

func keyFor(f frame) reassemblyKey {
	return reassemblyKey{messageNo: f.messageNo, response: f.flags&(TypeResponse|TypeError) != 0}
}

// NewConnection wraps rw (typically a net.Conn) as a BLIP session.
// Call Start to begin reading frames.
func NewConnection(rw io.ReadWriter) *Connection {
	return &Connection{
		rw:       rw,
		pending:  make(map[uint64]chan *Message),
		partial:  make(map[reassemblyKey]*reassembly),
		handlers: make(map[string]Handler),
		closed:   make(chan struct{}),
	}
}

// HandleProfile registers h for incoming requests whose Profile property
// matches profile. Must be called before Start (or while no request for
// that profile can yet arrive) to avoid a race with the read loop.
func (c *Connection) HandleProfile(profile string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[profile] = h
}

// Start launches the connection's read loop in its own goroutine.
func (c *Connection) Start() {
	go c.readLoop()
}

// Close stops the read loop's owner from waiting further and fails any
// outstanding SendRequest calls; it does not close the underlying rw
// (the caller owns that, e.g. the socket a replicator manages).
func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		defer c.mu.Unlock()
		for no, ch := range c.pending {
			close(ch)
			delete(c.pending, no)
		}
	})
}

// SendRequest sends msg (building a fresh messageNo) and blocks for the
// matching response, unless msg carries NoReply, in which case it sends
// and returns immediately with a nil response.
func (c *Connection) SendRequest(msg *Message) (*Message, *dberr.Error) {
	no := c.nextNo.Add(1)
	msg.MessageNo = no

	var replyCh chan *Message
	if !msg.Flags.Has(NoReply) {
		replyCh = make(chan *Message, 1)
		c.mu.Lock()
		c.pending[no] = replyCh
		c.mu.Unlock()
	}

	if err := c.sendMessage(no, msg); err != nil {
		if replyCh != nil {
			c.mu.Lock()
			delete(c.pending, no)
			c.mu.Unlock()
		}
		return nil, dberr.Wrap(dberr.Unexpected, err, "sending blip request")
	}
	if replyCh == nil {
		return nil, nil
	}

	select {
	case resp, ok := <-replyCh:
		if !ok {
			return nil, dberr.New(dberr.Unexpected, "connection closed before a response arrived")
		}
		return resp, nil
	case <-c.closed:
		return nil, dberr.New(dberr.Unexpected, "connection closed before a response arrived")
	}
}

// SendResponse replies to req, honoring NoReply.
func (c *Connection) SendResponse(req *Message, resp *Message) *dberr.Error {
	if req.Flags.Has(NoReply) || resp == nil {
		return nil
	}
	if err := c.sendMessage(req.MessageNo, resp); err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "sending blip response")
	}
	return nil
}

func (c *Connection) sendMessage(msgNo uint64, msg *Message) error {
	body := msg.Body
	if msg.Flags.Has(Compressed) {
		compressed, err := compressBody(body)
		if err != nil {
			return err
		}
		body = compressed
	}
	propsBlob := encodeProperties(msg.Properties)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	offset := 0
	first := true
	for {
		var payload []byte
		if first {
			payload = varint.PutUvarint(nil, uint64(len(propsBlob)))
			payload = append(payload, propsBlob...)
		}
		room := frameMaxBody - len(payload)
		if room < 0 {
			room = 0
		}
		end := offset + room
		if end > len(body) {
			end = len(body)
		}
		payload = append(payload, body[offset:end]...)
		offset = end

		more := offset < len(body)
		flags := msg.Flags
		if more {
			flags |= MoreComing
		} else {
			flags &^= MoreComing
		}
		if err := writeFrame(c.rw, frame{messageNo: msgNo, flags: flags, payload: payload}); err != nil {
			return err
		}
		first = false
		if !more {
			break
		}
	}
	return nil
}

func (c *Connection) readLoop() {
	logger := log.WithDomain(log.DomainBLIP)
	defer c.Close()

	for {
		f, err := readFrame(c.rw)
		if err != nil {
			if err != io.EOF {
				logger.Warn().Err(err).Msg("blip connection read failed")
			}
			return
		}

		key := keyFor(f)
		c.mu.Lock()
		asm, ok := c.partial[key]
		if !ok {
			asm = &reassembly{}
			c.partial[key] = asm
		}
		c.mu.Unlock()

		if err := asm.addFrame(f); err != nil {
			logger.Warn().Err(err).Msg("blip frame reassembly failed")
			c.mu.Lock()
			delete(c.partial, key)
			c.mu.Unlock()
			continue
		}
		if f.flags.Has(MoreComing) {
			continue
		}

		c.mu.Lock()
		delete(c.partial, key)
		c.mu.Unlock()

		msg, err := asm.finish()
		if err != nil {
			logger.Warn().Err(err).Msg("blip message decompression failed")
			continue
		}
		msg.MessageNo = f.messageNo
		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg *Message) {
	if !msg.IsRequest() {
		c.mu.Lock()
		ch, ok := c.pending[msg.MessageNo]
		if ok {
			delete(c.pending, msg.MessageNo)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
			close(ch)
		}
		return
	}

	c.mu.Lock()
	h, ok := c.handlers[msg.Profile()]
	c.mu.Unlock()
	if !ok {
		c.SendResponse(msg, NewErrorResponse("BLIP", 404, "no handler for profile "+msg.Profile()))
		return
	}
	resp := h(msg)
	c.SendResponse(msg, resp)
}

// reassembly accumulates the frames of one in-flight incoming message.
type reassembly struct {
	propsParsed bool
	properties  map[string]string
	body        []byte
	flags       Flags
}

func (a *reassembly) addFrame(f frame) error {
	payload := f.payload
	if !a.propsParsed {
		n, consumed := varint.Uvarint(payload)
		if consumed <= 0 {
			return dberr.New(dberr.Unexpected, "malformed properties length prefix")
		}
		if consumed+int(n) > len(payload) {
			return dberr.New(dberr.Unexpected, "properties blob overruns frame")
		}
		props, err := decodeProperties(payload[consumed : consumed+int(n)])
		if err != nil {
			return err
		}
		a.properties = props
		a.body = append(a.body, payload[consumed+int(n):]...)
		a.propsParsed = true
	} else {
		a.body = append(a.body, payload...)
	}
	a.flags = f.flags
	return nil
}

func (a *reassembly) finish() (*Message, error) {
	body := a.body
	if a.flags.Has(Compressed) {
		var err error
		body, err = decompressBody(body)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Flags:      a.flags &^ MoreComing,
		Properties: a.properties,
		Body:       body,
	}, nil
}
