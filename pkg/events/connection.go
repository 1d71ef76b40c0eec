package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/internal/logger"
	"github.com/fd1az/handshake-client/internal/sio"
	"github.com/fd1az/handshake-client/internal/wsconn"
)

type ackResult struct {
	args []Arg
	err  error
}

// connection is one socket.io session over one websocket. It is never
// reused: a reconnect builds a new connection.
type connection struct {
	ws    *wsconn.Client
	log   logger.LoggerInterface
	queue *queue

	nextID atomic.Uint64
	acksMu sync.Mutex
	acks   map[uint64]chan ackResult

	// reasm is owned by the websocket read goroutine.
	reasm sio.Reassembler

	readyOnce sync.Once
	ready     chan error

	lastPong atomic.Int64

	doneOnce sync.Once
	done     chan struct{}
}

func newConnection(ws *wsconn.Client, log logger.LoggerInterface, queueCapacity int) *connection {
	c := &connection{
		ws:    ws,
		log:   log,
		queue: newQueue(queueCapacity),
		acks:  make(map[uint64]chan ackResult),
		ready: make(chan error, 1),
		done:  make(chan struct{}),
	}
	ws.OnMessage(c.handleFrame)
	ws.OnStateChange(func(state wsconn.State, err error) {
		if state == wsconn.StateDisconnected || state == wsconn.StateClosed {
			c.shutdown(err)
		}
	})
	return c
}

// waitReady blocks until the server has accepted the default namespace.
func (c *connection) waitReady(ctx context.Context) error {
	select {
	case err := <-c.ready:
		return err
	case <-c.done:
		return apperror.New(apperror.CodeSocketClosed, apperror.WithContext("closed during handshake"))
	case <-ctx.Done():
		return apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(ctx.Err()), apperror.WithContext("socket handshake"))
	}
}

func (c *connection) signalReady(err error) {
	c.readyOnce.Do(func() { c.ready <- err })
}

// call emits an event with an ack id and waits for the raw ack arguments.
func (c *connection) call(ctx context.Context, name string, args ...any) ([]Arg, error) {
	id := c.nextID.Add(1)
	p, err := sio.NewEvent(id, name, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err), apperror.WithContext(name))
	}

	sink := make(chan ackResult, 1)
	c.acksMu.Lock()
	if c.isDone() {
		c.acksMu.Unlock()
		return nil, apperror.New(apperror.CodeSocketNotConnected, apperror.WithContext(name))
	}
	c.acks[id] = sink
	c.acksMu.Unlock()
	defer c.forget(id)

	if err := c.ws.Send(ctx, p.Encode()); err != nil {
		return nil, err
	}

	select {
	case res := <-sink:
		return res.args, res.err
	case <-ctx.Done():
		return nil, apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(ctx.Err()), apperror.WithContext(name))
	}
}

func (c *connection) forget(id uint64) {
	c.acksMu.Lock()
	delete(c.acks, id)
	c.acksMu.Unlock()
}

func (c *connection) handleFrame(ctx context.Context, msg wsconn.Message) {
	if msg.Binary {
		buf, err := sio.ParseAttachment(msg.Data)
		if err != nil {
			c.log.Warn(ctx, "dropping binary frame", "error", err)
			return
		}
		p, err := c.reasm.Add(buf)
		if err != nil {
			c.log.Warn(ctx, "dropping attachment", "error", err)
			return
		}
		if p != nil {
			c.handlePacket(ctx, p)
		}
		return
	}

	typ, payload, err := sio.ParseEngine(msg.Data)
	if err != nil {
		c.log.Warn(ctx, "dropping frame", "error", err)
		return
	}

	switch typ {
	case sio.EngineOpen:
		hs, err := sio.ParseHandshake(payload)
		if err != nil {
			c.signalReady(apperror.New(apperror.CodeSocketProtocolError, apperror.WithCause(err)))
			return
		}
		c.log.Debug(ctx, "engine open", "sid", hs.SID, "ping_interval", hs.Interval())
		c.lastPong.Store(time.Now().UnixNano())
		go c.pingLoop(hs)
	case sio.EnginePing:
		if err := c.ws.Send(ctx, sio.EncodeEngine(sio.EnginePong, payload)); err != nil {
			c.log.Debug(ctx, "pong failed", "error", err)
		}
	case sio.EnginePong:
		c.lastPong.Store(time.Now().UnixNano())
	case sio.EngineClose:
		go c.close()
	case sio.EngineMessage:
		p, err := sio.DecodePacket(payload)
		if err != nil {
			c.log.Warn(ctx, "dropping packet", "error", err)
			return
		}
		if c.reasm.Pending() {
			c.log.Warn(ctx, "dropping incomplete binary packet", "next", p.Type.String())
			c.reasm.Reset()
		}
		p, err = c.reasm.Start(p)
		if err != nil {
			c.log.Warn(ctx, "dropping packet", "error", err)
			return
		}
		if p != nil {
			c.handlePacket(ctx, p)
		}
	}
}

func (c *connection) handlePacket(ctx context.Context, p *sio.Packet) {
	if p.Namespace != "/" {
		c.log.Debug(ctx, "ignoring packet for namespace", "namespace", p.Namespace, "type", p.Type.String())
		return
	}

	switch p.Type {
	case sio.Connect:
		c.signalReady(nil)
	case sio.Disconnect:
		c.log.Info(ctx, "server closed the socket")
		go c.close()
	case sio.Error:
		var opts []apperror.Option
		if msg := errorText(Arg{JSON: p.Data}); msg != "" {
			opts = append(opts, apperror.WithMessage(msg))
		}
		err := apperror.New(apperror.CodeSocketProtocolError, opts...)
		c.signalReady(err)
		c.log.Warn(ctx, "socket error packet", "error", err)
	case sio.Event, sio.BinaryEvent:
		name, args, err := p.EventName()
		if err != nil {
			c.log.Warn(ctx, "dropping event", "error", err)
			return
		}
		c.queue.push(Event{Name: name, Args: args, Received: time.Now()})
	case sio.Ack, sio.BinaryAck:
		c.routeAck(ctx, p)
	}
}

func (c *connection) routeAck(ctx context.Context, p *sio.Packet) {
	args, err := p.Args()
	if err != nil {
		err = apperror.New(apperror.CodeSocketProtocolError, apperror.WithCause(err))
	}

	c.acksMu.Lock()
	sink, ok := c.acks[p.ID]
	delete(c.acks, p.ID)
	c.acksMu.Unlock()

	if !ok {
		c.log.Debug(ctx, "ack without caller", "id", p.ID)
		return
	}
	sink <- ackResult{args: args, err: err}
}

func (c *connection) pingLoop(hs sio.Handshake) {
	interval := hs.Interval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if timeout := hs.Timeout(); timeout > 0 {
				if since := time.Since(time.Unix(0, c.lastPong.Load())); since > interval+timeout {
					c.log.Warn(context.Background(), "socket heartbeat timed out", "since_last_pong", since)
					c.close()
					return
				}
			}
			if err := c.ws.Send(context.Background(), sio.EncodeEngine(sio.EnginePing, nil)); err != nil {
				return
			}
		}
	}
}

func (c *connection) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	_ = c.ws.Close()
	c.shutdown(nil)
}

// shutdown fails pending calls and stops the event queue. The dispatcher
// still drains events that were already queued.
func (c *connection) shutdown(cause error) {
	c.doneOnce.Do(func() {
		c.acksMu.Lock()
		close(c.done)
		for id, sink := range c.acks {
			sink <- ackResult{err: apperror.New(apperror.CodeSocketClosed, apperror.WithCause(cause))}
			delete(c.acks, id)
		}
		c.acksMu.Unlock()
		c.queue.close()
	})
}
