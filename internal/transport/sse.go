package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chainsafe/canton-mcp-server/internal/frame"
	"github.com/chainsafe/canton-mcp-server/internal/protocol"
)

// sseSink implements protocol.Sink (internal/dispatcher.Sink) over an open
// HTTP response, writing each frame as one `data: <json>\n\n` event and
// flushing immediately so progress/log frames reach the client as they
// happen rather than buffering until the stream closes.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// wireFrame mirrors frame.Frame's shape for JSON encoding, letting Send
// camelCase a Structured frame's Result before writing it without mutating
// the frame the dispatcher passed in.
type wireFrame struct {
	Type    frame.Kind  `json:"type"`
	Current int         `json:"current,omitempty"`
	Total   int         `json:"total,omitempty"`
	Message string      `json:"message,omitempty"`
	Level   frame.Level `json:"level,omitempty"`
	Result  any         `json:"result,omitempty"`
	Summary string      `json:"summary,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    any         `json:"data,omitempty"`
}

func (s *sseSink) Send(f frame.Frame) error {
	w := wireFrame{
		Type:    f.Type,
		Current: f.Current,
		Total:   f.Total,
		Message: f.Message,
		Level:   f.Level,
		Result:  f.Result,
		Summary: f.Summary,
		Code:    f.Code,
		Data:    f.Data,
	}
	if f.Type == frame.KindStructured && f.Result != nil {
		w.Result = protocol.SnakeToCamelDeep(f.Result)
	}

	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
