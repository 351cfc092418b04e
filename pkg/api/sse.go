package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
)

// receiveTimeout is how long the writer waits for a pipeline event before
// sending a heartbeat frame.
const receiveTimeout = 15 * time.Second

// paddingSize is the amount of whitespace attached to ping and heartbeat
// frames so intermediate proxies flush the stream.
const paddingSize = 2048

var ssePadding = strings.Repeat(" ", paddingSize)

// streamBus copies bus events onto the wire as server-sent events until
// the bus closes or the client goes away.
func streamBus(c *gin.Context, b *bus.Bus) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	start := time.Now()

	for {
		ev, err := b.Next(ctx, receiveTimeout)
		switch {
		case errors.Is(err, bus.ErrTimeout):
			elapsed := float64(int(time.Since(start).Seconds()*10)) / 10
			writeEvent(c, bus.Event{Name: "heartbeat", Payload: map[string]any{"elapsed": elapsed}})
		case errors.Is(err, bus.ErrClosed):
			return
		case err != nil:
			// Client disconnected; the pipeline sees the same context.
			return
		default:
			writeEvent(c, ev)
		}
	}
}

// writeEvent frames one event and flushes it. Heartbeat-class frames get
// a trailing _padding field.
func writeEvent(c *gin.Context, ev bus.Event) {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if ev.Name == "ping" || ev.Name == "heartbeat" {
		data = withPadding(data)
	}

	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Name, data)
	c.Writer.Flush()
}

// withPadding splices the padding field in as the last object member.
func withPadding(data []byte) []byte {
	if len(data) < 2 || data[len(data)-1] != '}' {
		return data
	}
	out := make([]byte, 0, len(data)+paddingSize+16)
	out = append(out, data[:len(data)-1]...)
	if len(data) > 2 {
		out = append(out, ',')
	}
	out = append(out, `"_padding":"`...)
	out = append(out, ssePadding...)
	out = append(out, '"', '}')
	return out
}
