package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lucasnoah/vitestgpt/internal/db"
)

// handleEventStream serves a Server-Sent Events stream of a run's stage events.
// It polls the ledger and sends each new event as a "stage" message. When the
// run leaves the running state it sends a "done" event carrying the status.
// Events with an id at or below ?after= are skipped.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sendDone := func(reason string) {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", reason)
		flusher.Flush()
	}

	lastID, _ := strconv.Atoi(r.URL.Query().Get("after"))
	tick := time.NewTicker(s.pollInterval)
	defer tick.Stop()

	for {
		run, err := s.db.GetRun(id)
		if err != nil || run == nil {
			sendDone("run not found")
			return
		}

		events, err := s.db.GetStageEvents(id)
		if err != nil {
			sendDone("ledger unavailable")
			return
		}
		for _, e := range events {
			if e.ID <= lastID {
				continue
			}
			lastID = e.ID
			writeEvent(w, e)
		}
		flusher.Flush()

		if run.Status != db.StatusRunning {
			sendDone(run.Status)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}
	}
}

func writeEvent(w http.ResponseWriter, e db.StageEvent) {
	data, _ := json.Marshal(map[string]string{
		"stage":     e.Stage,
		"event":     e.Event,
		"detail":    e.Detail,
		"timestamp": e.Timestamp,
	})
	fmt.Fprintf(w, "event: stage\ndata: %s\n\n", data)
}
