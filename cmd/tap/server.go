package main

import (
	"encoding/json"
	"net/http"

	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/consumer"
	"github.com/convoshop/realtime/internal/transport"
)

// controller is the part of a connection the HTTP surface drives.
type controller interface {
	Snapshot() connection.Snapshot
	Reconnect()
	ForceTransport(kind transport.Kind) error
}

type healthResponse struct {
	Status     string              `json:"status"`
	Indicator  consumer.Indicator  `json:"indicator"`
	Connection connection.Snapshot `json:"connection"`
}

func newHandler(conn controller, indicator *consumer.StatusIndicator, metricsHandler http.Handler, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET "+metricsPath, metricsHandler)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:     "healthy",
			Indicator:  indicator.Current(),
			Connection: conn.Snapshot(),
		}
		code := http.StatusOK
		switch {
		case resp.Connection.Status != connection.StatusConnected:
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		case resp.Indicator.Degraded:
			resp.Status = "degraded"
		}
		writeJSON(w, code, resp)
	})

	mux.HandleFunc("POST /reconnect", func(w http.ResponseWriter, r *http.Request) {
		conn.Reconnect()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /transport/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := transport.ParseKind(r.PathValue("kind"))
		if err == nil {
			err = conn.ForceTransport(kind)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
