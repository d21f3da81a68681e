package stubapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// LogEvent is the payload of one log stream event.
type LogEvent struct {
	Target  string `json:"target"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// subscriberBuffer is how many frames a slow stream may fall behind before
// frames are dropped for it.
const subscriberBuffer = 64

type broker struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[chan string]struct{}
	closed bool
	seq    int
}

func newBroker(logger *slog.Logger) *broker {
	return &broker{logger: logger, subs: make(map[chan string]struct{})}
}

func (b *broker) subscribe() (chan string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	ch := make(chan string, subscriberBuffer)
	b.subs[ch] = struct{}{}
	return ch, true
}

func (b *broker) unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *broker) publish(ev LogEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.publishRaw(string(data))
}

func (b *broker) publishRaw(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	frame := fmt.Sprintf("event: log\nid: %d\ndata: %s\n\n", b.seq, data)
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
			b.logger.Warn("log stream subscriber lagging, frame dropped")
		}
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// handleLogs serves the log stream as server-sent events.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	frames, ok := s.broker.subscribe()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "log stream closed")
		return
	}
	defer s.broker.unsubscribe(frames)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			fmt.Fprint(w, frame)
			flusher.Flush()
		case <-tick:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
