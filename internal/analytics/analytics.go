// Package analytics summarises the run ledger: outcomes, stage timings and how
// many test runs the repair loop needed.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
	Rebind(query string) string
}

// timestamp formats to try when parsing timestamps from the database
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

func query(database DB, q string, args ...any) (*sql.Rows, error) {
	return database.Conn().Query(database.Rebind(q), args...)
}

// Summary holds overall run outcomes.
type Summary struct {
	Runs         int     `json:"runs"`
	Passed       int     `json:"passed"`
	Halted       int     `json:"halted"`
	Failed       int     `json:"failed"`
	Running      int     `json:"running"`
	PassRate     float64 `json:"pass_pct"`
	FirstRunPass float64 `json:"first_run_pass_pct"`
	AvgTestRuns  float64 `json:"avg_test_runs"`
}

// QuerySummary returns run counts by status. Percentages use finished runs as
// the denominator.
func QuerySummary(database DB, since string) (*Summary, error) {
	q := `SELECT status, COUNT(*), COALESCE(SUM(attempts), 0) FROM runs`
	var args []any
	if since != "" {
		q += ` WHERE started_at >= ?`
		args = append(args, since)
	}
	q += ` GROUP BY status`

	rows, err := query(database, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	var s Summary
	var finishedAttempts int
	for rows.Next() {
		var status string
		var count, attempts int
		if err := rows.Scan(&status, &count, &attempts); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		s.Runs += count
		switch status {
		case "passed":
			s.Passed = count
		case "halted":
			s.Halted = count
		case "failed":
			s.Failed = count
		case "running":
			s.Running = count
			continue
		}
		finishedAttempts += attempts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	finished := s.Passed + s.Halted + s.Failed
	s.PassRate = pct(s.Passed, finished)
	if finished > 0 {
		s.AvgTestRuns = math.Round(float64(finishedAttempts)/float64(finished)*10) / 10
	}

	fq := `SELECT COUNT(*) FROM test_attempts ta JOIN runs r ON r.id = ta.run_id
		WHERE ta.iteration = 1 AND ta.exit_code = 0 AND r.status != 'running'`
	if since != "" {
		fq += ` AND r.started_at >= ?`
	}
	var firstPass int
	if err := database.Conn().QueryRow(database.Rebind(fq), args...).Scan(&firstPass); err != nil {
		return nil, fmt.Errorf("query first-run passes: %w", err)
	}
	s.FirstRunPass = pct(firstPass, finished)
	return &s, nil
}

// StageDuration holds duration stats for a stage, in seconds.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// QueryStageDurations returns average and percentile durations per stage.
// Each started event is paired with the next terminal event (completed,
// halted or failed) of the same run and stage.
func QueryStageDurations(database DB, since string) ([]StageDuration, error) {
	q := `SELECT run_id, stage, event, timestamp FROM stage_events
		WHERE event IN ('started', 'completed', 'halted', 'failed')`
	var args []any
	if since != "" {
		q += ` AND timestamp >= ?`
		args = append(args, since)
	}
	q += ` ORDER BY id ASC`

	rows, err := query(database, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	open := make(map[string]time.Time)
	durations := make(map[string][]float64)
	for rows.Next() {
		var runID, stage, event, ts string
		if err := rows.Scan(&runID, &stage, &event, &ts); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		at, err := parseTimestamp(ts)
		if err != nil {
			continue
		}
		key := runID + "\x00" + stage
		if event == "started" {
			open[key] = at
			continue
		}
		start, ok := open[key]
		if !ok {
			continue
		}
		delete(open, key)
		if secs := at.Sub(start).Seconds(); secs >= 0 {
			durations[stage] = append(durations[stage], secs)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, ds := range durations {
		sort.Float64s(ds)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(ds),
			Avg:   avg(ds),
			P50:   percentile(ds, 50),
			P95:   percentile(ds, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// AttemptBucket counts finished runs that needed a given number of test runs.
type AttemptBucket struct {
	TestRuns int `json:"test_runs"`
	Runs     int `json:"runs"`
	Passed   int `json:"passed"`
}

// QueryAttemptDistribution returns how many test runs finished runs needed.
func QueryAttemptDistribution(database DB, since string) ([]AttemptBucket, error) {
	q := `SELECT attempts, COUNT(*), SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END)
		FROM runs WHERE status != 'running'`
	var args []any
	if since != "" {
		q += ` AND started_at >= ?`
		args = append(args, since)
	}
	q += ` GROUP BY attempts ORDER BY attempts`

	rows, err := query(database, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempt distribution: %w", err)
	}
	defer rows.Close()

	var out []AttemptBucket
	for rows.Next() {
		var b AttemptBucket
		if err := rows.Scan(&b.TestRuns, &b.Runs, &b.Passed); err != nil {
			return nil, fmt.Errorf("scan attempt bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FunctionStats holds per-function outcomes.
type FunctionStats struct {
	Function string  `json:"function"`
	Runs     int     `json:"runs"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_pct"`
}

// QueryFunctions returns the most frequently targeted functions.
func QueryFunctions(database DB, since string, limit int) ([]FunctionStats, error) {
	q := `SELECT function_name, COUNT(*), SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END)
		FROM runs`
	var args []any
	if since != "" {
		q += ` WHERE started_at >= ?`
		args = append(args, since)
	}
	q += ` GROUP BY function_name ORDER BY COUNT(*) DESC, function_name ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := query(database, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()

	var out []FunctionStats
	for rows.Next() {
		var f FunctionStats
		if err := rows.Scan(&f.Function, &f.Runs, &f.Passed); err != nil {
			return nil, fmt.Errorf("scan function stats: %w", err)
		}
		f.PassRate = pct(f.Passed, f.Runs)
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
