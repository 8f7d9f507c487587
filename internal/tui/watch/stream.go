package watch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mattjoyce/notifyd/internal/events"
)

// ReadSSE parses a server-sent event stream and calls fn once per complete
// frame. Comment lines and unknown fields are ignored. It returns nil at EOF.
func ReadSSE(r io.Reader, fn func(events.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		ev      events.Event
		data    []string
		pending bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if pending {
				ev.Data = []byte(strings.Join(data, "\n"))
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data, pending = events.Event{}, nil, false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				ev.ID = id
			}
			pending = true
		case "event":
			ev.Type = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	return scanner.Err()
}

// Subscribe connects to apiURL/events and forwards every event to out until
// ctx is cancelled or the stream ends.
func Subscribe(ctx context.Context, client *http.Client, apiURL, apiKey string, out chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(apiURL, "/")+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: unexpected status %s", resp.Status)
	}

	return ReadSSE(resp.Body, func(ev events.Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
