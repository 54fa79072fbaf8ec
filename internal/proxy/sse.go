package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// beginSSE sets the headers a streaming response needs before the first
// event is written. Mirrors the event:/data: framing internal/backend's
// anthropic.go Stream parses on the client side, written here instead of
// read.
func beginSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSEEvent(w http.ResponseWriter, ev wire.StreamEvent) {
	if ev.Data == nil {
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", ev.Type)
		return
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		data = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
