// Copyright (c) 2026 Quanta Exchange Contributors
//
// A tiny read-only introspection endpoint, the same role the teacher's
// TUI fills by calling Databento's hist HTTP API directly rather than
// sharing process memory with another binary: cmd/qx-tui polls this
// endpoint rather than opening the store itself, since two processes
// opening the same WAL directory for writing would race.

package main

import (
	"net/http"

	"github.com/segmentio/encoding/json"

	"github.com/quantaex/qx-store/notify"
	"github.com/quantaex/qx-store/storage"
)

// statsResponse is the /stats wire shape; cmd/qx-tui decodes an
// identical struct of its own rather than importing this main package.
type statsResponse struct {
	Store         storage.Stats `json:"store"`
	QueueDepths   [4]int        `json:"queue_depths"`
	SessionCount  int           `json:"session_count"`
}

// orderLookupResponse is the /order?id= wire shape.
type orderLookupResponse struct {
	Found bool   `json:"found"`
	Raw   []byte `json:"raw,omitempty"`
}

func newStatsHandler(store *storage.Store, broker *notify.Broker, gateway *notify.Gateway) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		resp := statsResponse{
			Store:        store.Stats(),
			QueueDepths:  broker.QueueDepths(),
			SessionCount: gateway.SessionCount(),
		}
		writeJSON(w, resp)
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id query parameter", http.StatusBadRequest)
			return
		}
		raw, ok, err := store.Get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, orderLookupResponse{Found: ok, Raw: raw})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(body)
}
