package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEventStream(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"",
		"data: {\"event\":\"order_created\",",
		"data: \"data\":{\"id\":\"o1\"}}",
		"",
		"id: 7",
		"event: typing",
		"data: {\"conversation_id\":\"c1\"}",
		"",
		"retry: 10000",
		"data:no-space",
		"",
		"event: dangling",
	}, "\r\n")

	var events []streamEvent
	lines := 0
	err := readEventStream(strings.NewReader(stream), func() { lines++ }, func(ev streamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "{\"event\":\"order_created\",\n\"data\":{\"id\":\"o1\"}}", events[0].Data)
	assert.Equal(t, "", events[0].Event)

	assert.Equal(t, "typing", events[1].Event)
	assert.Equal(t, "7", events[1].ID)

	assert.Equal(t, "no-space", events[2].Data)
	assert.Equal(t, "7", events[2].ID, "last event id persists")
	assert.Equal(t, 13, lines)
}

func TestEnvelopeFor(t *testing.T) {
	tests := []struct {
		name string
		ev   streamEvent
		want string
	}{
		{
			name: "unnamed carries envelope",
			ev:   streamEvent{Data: `{"event":"order_created","data":{}}`},
			want: `{"event":"order_created","data":{}}`,
		},
		{
			name: "named event wraps payload",
			ev:   streamEvent{Event: "typing", Data: `{"conversation_id":"c1"}`},
			want: `{"event":"typing","data":{"conversation_id":"c1"}}`,
		},
		{
			name: "named event already an envelope",
			ev:   streamEvent{Event: "update", Data: `{"event":"order_updated","data":{}}`},
			want: `{"event":"order_updated","data":{}}`,
		},
		{
			name: "named event with scalar payload",
			ev:   streamEvent{Event: "count", Data: `3`},
			want: `{"event":"count","data":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(envelopeFor(tt.ev)))
		})
	}

	assert.Equal(t, "not json", string(envelopeFor(streamEvent{Event: "x", Data: "not json"})))
}
