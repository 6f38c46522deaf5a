package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusHalted  = "halted"
	StatusFailed  = "failed"
)

// Run represents a row in the runs table.
type Run struct {
	ID           string
	FunctionName string
	InputFile    string
	OutputFile   string
	Status       string
	Message      string
	Attempts     int
	StartedAt    string
	FinishedAt   string
}

// StageEvent represents a row in the stage_events table.
type StageEvent struct {
	ID        int
	RunID     string
	Stage     string
	Event     string
	Detail    string
	Timestamp string
}

// TestAttempt represents a row in the test_attempts table.
type TestAttempt struct {
	ID         int
	RunID      string
	Iteration  int
	ExitCode   int
	Passed     bool
	Summary    string
	DurationMs int
	Timestamp  string
}

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// StartRun inserts a run in the running state.
func (d *DB) StartRun(id, functionName, inputFile, outputFile string) error {
	_, err := d.exec(
		`INSERT INTO runs (id, function_name, input_file, output_file, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, functionName, inputFile, outputFile, StatusRunning, now(),
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (d *DB) FinishRun(id, status, message string, attempts int) error {
	res, err := d.exec(
		`UPDATE runs SET status = ?, message = ?, attempts = ?, finished_at = ? WHERE id = ?`,
		status, message, attempts, now(), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %q not found", id)
	}
	return nil
}

// LogStageEvent inserts a stage lifecycle event.
func (d *DB) LogStageEvent(runID, stage, event, detail string) error {
	_, err := d.exec(
		`INSERT INTO stage_events (run_id, stage, event, detail, timestamp) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, event, detail, now(),
	)
	if err != nil {
		return fmt.Errorf("log stage event: %w", err)
	}
	return nil
}

// LogTestAttempt inserts one execution of the generated tests.
func (d *DB) LogTestAttempt(runID string, iteration, exitCode int, summary string, durationMs int) error {
	_, err := d.exec(
		`INSERT INTO test_attempts (run_id, iteration, exit_code, passed, summary, duration_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, iteration, exitCode, exitCode == 0, summary, durationMs, now(),
	)
	if err != nil {
		return fmt.Errorf("log test attempt: %w", err)
	}
	return nil
}

const runColumns = `id, function_name, input_file, output_file, status, message, attempts, started_at, finished_at`

func scanRun(s interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var message, finished sql.NullString
	if err := s.Scan(&r.ID, &r.FunctionName, &r.InputFile, &r.OutputFile, &r.Status,
		&message, &r.Attempts, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Message = message.String
	r.FinishedAt = finished.String
	return &r, nil
}

// GetRun returns a run by id, or nil if there is none.
func (d *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(d.queryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, by cascade, its events and attempts.
func (d *DB) DeleteRun(id string) error {
	if _, err := d.exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// GetStageEvents returns the events of a run in insertion order.
func (d *DB) GetStageEvents(runID string) ([]StageEvent, error) {
	rows, err := d.query(
		`SELECT id, run_id, stage, event, detail, timestamp FROM stage_events WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var e StageEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetTestAttempts returns the attempts of a run by iteration.
func (d *DB) GetTestAttempts(runID string) ([]TestAttempt, error) {
	rows, err := d.query(
		`SELECT id, run_id, iteration, exit_code, passed, summary, duration_ms, timestamp
		 FROM test_attempts WHERE run_id = ? ORDER BY iteration ASC, id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get test attempts: %w", err)
	}
	defer rows.Close()

	var attempts []TestAttempt
	for rows.Next() {
		var a TestAttempt
		var summary sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&a.ID, &a.RunID, &a.Iteration, &a.ExitCode, &a.Passed, &summary, &duration, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan test attempt: %w", err)
		}
		a.Summary = summary.String
		a.DurationMs = int(duration.Int64)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
