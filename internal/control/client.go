// Package control implements the websocket control channel to the
// voice-processing backend: JSON text frames inbound, opaque binary
// audio chunks outbound.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicecap/internal/domain"
	"voicecap/internal/ports"
)

const handshakeTimeout = 10 * time.Second

// Dialer opens control channels over websocket.
type Dialer struct {
	log *slog.Logger
}

func NewDialer(log *slog.Logger) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	return &Dialer{log: log}
}

func (d *Dialer) Dial(ctx context.Context, url string) (ports.ControlChannel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect control channel: %w", err)
	}
	d.log.Info("ws_open", "url", url)

	ch := &channel{
		conn:     conn,
		msgs:     make(chan domain.ServerMessage, 64),
		audio:    make(chan []byte, 32),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		log:      d.log,
	}

	ch.wg.Add(2)
	go ch.readLoop()
	go ch.writeLoop()
	go func() {
		ch.wg.Wait()
		close(ch.msgs)
		close(ch.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-ch.done:
		}
	}()

	return ch, nil
}

type channel struct {
	conn *websocket.Conn
	log  *slog.Logger

	msgs     chan domain.ServerMessage
	audio    chan []byte
	done     chan struct{}
	readDone chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// SendAudio queues one binary audio frame.
func (c *channel) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	// The read lock is held across the send so CloseSend cannot close
	// the audio channel between the closed-check and the send.
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return errors.New("control channel send side is closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case c.audio <- copied:
		return nil
	case <-c.done:
		if err := c.waitErr(); err != nil {
			return err
		}
		return errors.New("control channel closed")
	}
}

// CloseSend stops outbound traffic and sends a close frame once the
// queued chunks have been written.
func (c *channel) CloseSend() error {
	c.closeSendOnce.Do(func() {
		c.sendMu.Lock()
		c.sendClosed = true
		close(c.audio)
		c.sendMu.Unlock()
	})
	return nil
}

func (c *channel) Messages() <-chan domain.ServerMessage {
	return c.msgs
}

// Wait blocks until the channel is finished and returns its terminal
// error, nil for a clean close.
func (c *channel) Wait() error {
	<-c.done
	return c.waitErr()
}

func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.CloseSend()
		_ = c.conn.Close()
	})
	<-c.done
	return c.waitErr()
}

func (c *channel) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *channel) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *channel) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case chunk, ok := <-c.audio:
			if !ok {
				message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second)); err != nil {
					c.setErr(fmt.Errorf("send close frame: %w", err))
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				c.setErr(fmt.Errorf("send audio chunk: %w", err))
				return
			}
		case <-c.readDone:
			// The connection is gone; nothing left to write to.
			return
		}
	}
}

func (c *channel) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(fmt.Errorf("read control frame: %w", err))
			return
		}
		if kind != websocket.TextMessage {
			c.log.Warn("ws_unexpected_frame", "kind", kind, "bytes", len(payload))
			continue
		}

		var msg domain.ServerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Malformed payloads are logged and dropped, never fatal.
			c.log.Warn("ws_bad_payload", "error", err, "bytes", len(payload))
			continue
		}
		c.emit(msg)
	}
}

func (c *channel) emit(msg domain.ServerMessage) {
	select {
	case c.msgs <- msg:
	default:
		// The consumer is not keeping up; shedding beats stalling reads.
		c.log.Warn("ws_message_dropped", "type", msg.Type)
	}
}
