package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const liveWriteWait = 10 * time.Second

// liveFrame is pushed to the client for every published preview, and in
// reply to a failed edit.
type liveFrame struct {
	Type     string `json:"type"` // "preview" or "error"
	Revision uint64 `json:"revision,omitempty"`
	HTML     string `json:"html,omitempty"`
	Error    string `json:"error,omitempty"`
	Field    string `json:"field,omitempty"`
}

// liveEdit is an incoming field mutation.
type liveEdit struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// handleLive streams previews over a websocket and applies edits sent by
// the client. The stream ends when either side closes or the session is
// deleted.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, e *entry) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	previews, cancel := e.session.Subscribe()
	defer cancel()

	// Edits are read on their own goroutine; errors are handed to the
	// writer so only one goroutine writes to conn.
	replies := make(chan liveFrame, 8)
	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	defer close(writeDone)
	reply := func(f liveFrame) bool {
		select {
		case replies <- f:
			return true
		case <-writeDone:
			return false
		}
	}
	go func() {
		defer close(readDone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read", zap.Error(err))
				}
				return
			}
			var edit liveEdit
			if err := json.Unmarshal(msg, &edit); err != nil {
				if !reply(liveFrame{Type: "error", Error: "invalid message format"}) {
					return
				}
				continue
			}
			value, err := decodeValue(e.session.Schema(), edit.Field, bytes.NewReader(edit.Value))
			if err == nil {
				err = e.session.SetField(edit.Field, value)
			}
			if err != nil && !reply(liveFrame{Type: "error", Field: edit.Field, Error: err.Error()}) {
				return
			}
		}
	}()

	for {
		var frame liveFrame
		select {
		case <-readDone:
			return
		case p, ok := <-previews:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(liveWriteWait))
				return
			}
			frame = liveFrame{Type: "preview", Revision: p.Revision, HTML: p.HTML}
		case frame = <-replies:
		}
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}
