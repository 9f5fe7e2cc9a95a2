package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// streamEvent is one dispatched text/event-stream event.
type streamEvent struct {
	ID    string
	Event string
	Data  string
}

const maxStreamLine = 1 << 20

// readEventStream parses r until EOF or error. onLine fires for every line,
// comments included, and serves as the liveness signal.
func readEventStream(r io.Reader, onLine func(), onEvent func(streamEvent)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var (
		ev      streamEvent
		data    strings.Builder
		hasData bool
	)

	for sc.Scan() {
		line := sc.Text()
		onLine()

		if line == "" {
			if hasData {
				ev.Data = strings.TrimSuffix(data.String(), "\n")
				onEvent(ev)
			}
			ev = streamEvent{ID: ev.ID}
			data.Reset()
			hasData = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Event = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.Contains(value, "\x00") {
				ev.ID = value
			}
		case "retry":
			// Reconnect timing belongs to the connection state machine.
		}
	}
	return sc.Err()
}

// envelopeFor maps a stream event onto the envelope wire form. Unnamed and
// "message" events carry a full envelope in data. Named events whose data
// is not already an envelope are wrapped as {"event": name, "data": data}.
func envelopeFor(ev streamEvent) []byte {
	data := []byte(ev.Data)
	if ev.Event == "" || ev.Event == "message" || !json.Valid(data) {
		return data
	}

	var probe struct {
		Event *string `json:"event"`
	}
	if json.Unmarshal(data, &probe) == nil && probe.Event != nil {
		return data
	}

	wrapped, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{ev.Event, data})
	if err != nil {
		return data
	}
	return wrapped
}
