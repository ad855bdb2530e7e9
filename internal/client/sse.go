package client

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tether/internal/logging"
)

// EventStream opens the server push channel at <base>/event and yields the
// raw data payload of each frame. The channel closes when the transport ends
// or the returned cancel func is called.
func (c *Client) EventStream(ctx context.Context) (<-chan string, func(), error) {
	streamCtx, streamCancel := context.WithCancel(ctx)
	endpoint := c.baseURL + "/event"

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		streamCancel()
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		streamCancel()
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := decodeRequestError(http.MethodGet, "/event", resp)
		_ = resp.Body.Close()
		streamCancel()
		return nil, nil, err
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		_ = resp.Body.Close()
		streamCancel()
		return nil, nil, &RequestError{
			Method:     http.MethodGet,
			Path:       "/event",
			StatusCode: resp.StatusCode,
			Message:    "unexpected content type " + ct,
		}
	}

	out := make(chan string, 256)
	go func() {
		defer close(out)
		defer streamCancel()
		defer resp.Body.Close()

		start := time.Now()
		count := readFrames(streamCtx, resp.Body, out)
		c.logger.Debug("event stream closed", logging.F("frames", count), logging.F("dur", time.Since(start)))
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			streamCancel()
			_ = resp.Body.Close()
		})
	}
	return out, cancel, nil
}

// readFrames splits an SSE body into frames and sends the joined data lines
// of each one. It returns the number of frames delivered.
func readFrames(ctx context.Context, body io.Reader, out chan<- string) int {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	dataLines := make([]string, 0, 8)
	count := 0
	emit := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		payload := strings.TrimSpace(strings.Join(dataLines, "\n"))
		dataLines = dataLines[:0]
		if payload == "" {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case out <- payload:
			count++
			return true
		}
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if !emit() {
				return count
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	_ = emit()
	return count
}
