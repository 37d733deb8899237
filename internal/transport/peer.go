// Package transport carries tick inputs between the two peers of a match
// over a websocket. The channel is deliberately fire-and-forget: sends
// never block the tick loop, and the receiving side tolerates duplicates
// and reordering, so no delivery guarantees are made here.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/sensen-game/sensen-core/internal/input"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pingInterval = 15 * time.Second
)

// Peer is one end of the input channel. Send queues outgoing messages for
// a writer goroutine; Pump runs the read loop and hands every decoded
// message to the receiver.
type Peer struct {
	conn   *websocket.Conn
	send   chan input.Message
	logger *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, url string, logger *log.Logger) (*Peer, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newPeer(conn, logger), nil
}

// Accept upgrades an incoming HTTP request into a peer connection.
func Accept(w http.ResponseWriter, r *http.Request, logger *log.Logger) (*Peer, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return nil, err
	}
	return newPeer(conn, logger), nil
}

func newPeer(conn *websocket.Conn, logger *log.Logger) *Peer {
	if logger == nil {
		logger = log.New(os.Stdout, "[PEER] ", log.LstdFlags)
	}
	p := &Peer{
		conn:   conn,
		send:   make(chan input.Message, sendBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

// Send queues one message for delivery. It never blocks: when the buffer
// is full the message is dropped, which the rollback layer already treats
// as ordinary network loss.
func (p *Peer) Send(msg input.Message) error {
	// Checked on its own first: a combined select picks at random when
	// done is closed and the buffer has room.
	select {
	case <-p.done:
		return errors.New("transport: peer closed")
	default:
	}
	select {
	case <-p.done:
		return errors.New("transport: peer closed")
	case p.send <- msg:
		return nil
	default:
		p.logger.Printf("send buffer full, dropping tick %d", msg.Tick)
		return nil
	}
}

func (p *Peer) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.send:
			data, err := json.Marshal(msg)
			if err != nil {
				p.logger.Printf("marshal tick %d: %v", msg.Tick, err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err = p.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				p.logger.Printf("write tick %d: %v", msg.Tick, err)
			}
		case <-ping.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			_ = p.conn.Ping(ctx)
			cancel()
		}
	}
}

// Pump reads until the connection or the context ends and hands every
// message to receive. Malformed frames and invalid input values are
// logged and skipped; any other receiver error stops the pump.
func (p *Peer) Pump(ctx context.Context, receive func(input.Message) error) error {
	defer p.Close()
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var msg input.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Printf("drop malformed frame: %v", err)
			continue
		}
		if err := receive(msg); err != nil {
			if errors.Is(err, input.ErrInvalidInput) {
				p.logger.Printf("drop tick %d: %v", msg.Tick, err)
				continue
			}
			return err
		}
	}
}

// Close tears the connection down. Safe to call more than once. The
// close handshake runs in the background: a remote that has stopped
// reading would otherwise hold the caller for the full handshake
// timeout.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		go func() { _ = p.conn.Close(websocket.StatusNormalClosure, "bye") }()
	})
}
