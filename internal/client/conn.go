package client

import (
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	outboundSize = 16
	writeWait    = 10 * time.Second
)

// frame is one text message read from the connection generation gen.
type frame struct {
	gen  uint64
	data []byte
}

// closed reports the end of the connection generation gen.
type closed struct {
	gen uint64
	err error
}

// dialed is the outcome of the dial attempt gen.
type dialed struct {
	gen  uint64
	conn *ws.Conn
	err  error
}

// readLoop forwards every message to the event loop until the
// connection fails.
func (c *Client) readLoop(gen uint64, conn *ws.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case c.closedCh <- closed{gen: gen, err: err}:
			case <-c.stop:
			}
			return
		}
		select {
		case c.inbound <- frame{gen: gen, data: data}:
		case <-c.stop:
			return
		}
	}
}

// writeLoop is the only writer of conn. It returns when out is closed or
// a write fails; a failed write closes conn so that readLoop reports it.
func (c *Client) writeLoop(conn *ws.Conn, out <-chan []byte) {
	for data := range out {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
			_ = conn.Close()
			return
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			c.logger.Warn("WebSocket write error", "error", err)
			_ = conn.Close()
			return
		}
	}
}

// hangUp sends a close frame and closes conn.
func hangUp(conn *ws.Conn) {
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}
