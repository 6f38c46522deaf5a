package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/lucasnoah/vitestgpt/internal/analytics"
	"github.com/lucasnoah/vitestgpt/internal/db"
)

// ---- view models ----

type DashboardData struct {
	Summary *analytics.Summary
	Runs    []RunRow
}

type RunRow struct {
	ID         string
	Function   string
	InputFile  string
	Status     string
	Attempts   int
	StartedAgo string
}

type RunDetailData struct {
	Run      *db.Run
	Events   []db.StageEvent
	Attempts []AttemptView
	Testplan string
	TestFile string
	IsActive bool
	// LastEventID lets the live stream resume after the rendered events.
	LastEventID int
	// HasConversation is true when the run's conversation.json exists.
	HasConversation bool
}

type AttemptView struct {
	db.TestAttempt
	Duration string
}

type StatsData struct {
	Summary      *analytics.Summary        `json:"summary"`
	Stages       []analytics.StageDuration `json:"stages"`
	Distribution []analytics.AttemptBucket `json:"test_runs"`
	Functions    []analytics.FunctionStats `json:"functions"`
}

// ---- helpers ----

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func relTime(ts string) string {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	var t time.Time
	for _, f := range formats {
		if parsed, err := time.Parse(f, ts); err == nil {
			t = parsed
			break
		}
	}
	if t.IsZero() {
		return ts
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func fmtMillis(ms int) string {
	if ms <= 0 {
		return ""
	}
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}

func (s *Server) execTemplate(w http.ResponseWriter, tmpl *template.Template, data any) {
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---- Dashboard ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := analytics.QuerySummary(s.db, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	runs, err := s.db.ListRuns(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := DashboardData{Summary: summary}
	for _, run := range runs {
		data.Runs = append(data.Runs, RunRow{
			ID:         run.ID,
			Function:   run.FunctionName,
			InputFile:  run.InputFile,
			Status:     run.Status,
			Attempts:   run.Attempts,
			StartedAgo: relTime(run.StartedAt),
		})
	}
	s.execTemplate(w, s.dashboardTmpl, data)
}

// ---- Run detail ----

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.db.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	events, _ := s.db.GetStageEvents(id)
	attempts, _ := s.db.GetTestAttempts(id)

	data := RunDetailData{
		Run:      run,
		Events:   events,
		IsActive: run.Status == db.StatusRunning,
	}
	if n := len(events); n > 0 {
		data.LastEventID = events[n-1].ID
	}
	for _, a := range attempts {
		data.Attempts = append(data.Attempts, AttemptView{TestAttempt: a, Duration: fmtMillis(a.DurationMs)})
	}
	if s.store != nil {
		if res, err := s.store.Get(id); err == nil {
			data.Testplan = res.Testplan
			data.TestFile = res.TestFile
		}
		if msgs, err := s.store.Conversation(id); err == nil && len(msgs) > 0 {
			data.HasConversation = true
		}
	}
	s.execTemplate(w, s.runTmpl, data)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, id string) {
	if s.store == nil {
		http.NotFound(w, r)
		return
	}
	msgs, err := s.store.Conversation(id)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, m := range msgs {
		fmt.Fprintf(w, "--- %s ---\n%s\n", m.Role, stripANSI(m.Content))
	}
}

// ---- Stats ----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	var data StatsData
	var err error
	if data.Summary, err = analytics.QuerySummary(s.db, since); err == nil {
		if data.Stages, err = analytics.QueryStageDurations(s.db, since); err == nil {
			if data.Distribution, err = analytics.QueryAttemptDistribution(s.db, since); err == nil {
				data.Functions, err = analytics.QueryFunctions(s.db, since, 10)
			}
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		s.logger.Sugar().Warnw("encode stats", "error", err)
	}
}
