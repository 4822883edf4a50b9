package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
)

const KindSSE = "sse"

// SSESink writes frames as Server-Sent Events: the frame type becomes the
// event name, the sequence number the event id and the JSON frame the data.
type SSESink struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	gone <-chan struct{}
}

// NewSSESink writes the stream headers and flushes them.
func NewSSESink(w http.ResponseWriter, r *http.Request) (*SSESink, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &SSESink{w: w, rc: rc, gone: r.Context().Done()}, nil
}

func (s *SSESink) Kind() string { return KindSSE }

func (s *SSESink) Gone() <-chan struct{} { return s.gone }

func (s *SSESink) WriteFrame(f Frame) error {
	evt := sse.Event{Event: f.Type, Data: f}
	if f.ID >= 0 {
		evt.Id = strconv.FormatInt(f.ID, 10)
	}

	// Not every writer supports deadlines; the stream still works without one.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sse.Encode(s.w, evt); err != nil {
		return err
	}
	return s.rc.Flush()
}
