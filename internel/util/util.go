package util

import (
	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// FrameWriter is the part of *websocket.Conn needed to send a frame.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// FrameReader is the part of *websocket.Conn needed to receive a frame.
type FrameReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

func WriteText(c FrameWriter, buf []byte) error {
	if err := c.WriteMessage(ws.TextMessage, buf); err != nil {
		return errors.Wrap(err, "write text frame")
	}
	return nil
}

func WriteBinary(c FrameWriter, buf []byte) error {
	if err := c.WriteMessage(ws.BinaryMessage, buf); err != nil {
		return errors.Wrap(err, "write binary frame")
	}
	return nil
}

// ReadFrame returns the next data frame. Errors are returned unwrapped so
// callers can still match *websocket.CloseError.
func ReadFrame(c FrameReader) (int, []byte, error) {
	return c.ReadMessage()
}

// IsNormalClose reports whether err ends the connection without a failure.
func IsNormalClose(err error) bool {
	var e *ws.CloseError
	if errors.As(err, &e) {
		return e.Code == ws.CloseNormalClosure || e.Code == ws.CloseGoingAway
	}
	return false
}
