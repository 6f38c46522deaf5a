package pipeline

// Attempt records one execution of the generated test file.
type Attempt struct {
	Result   string `json:"result"`
	ExitCode int    `json:"exit_code"`
}

// Result is the persisted summary of a finished run.
type Result struct {
	ID                string    `json:"id"`
	InputFile         string    `json:"input_file"`
	FunctionName      string    `json:"function_name"`
	OutputFile        string    `json:"output_file"`
	ManifestFile      string    `json:"manifest_file,omitempty"`
	Lang              string    `json:"lang,omitempty"`
	UsesDefaultExport bool      `json:"uses_default_export"`
	Continue          bool      `json:"continue"`
	Status            string    `json:"status"` // "passed", "halted"
	MessageToUser     string    `json:"message_to_user,omitempty"`
	IsolatedFunction  string    `json:"isolated_function,omitempty"`
	Testplan          string    `json:"testplan,omitempty"`
	TestFile          string    `json:"test_file,omitempty"`
	Attempts          []Attempt `json:"attempts"`
	StartedAt         string    `json:"started_at"`
	FinishedAt        string    `json:"finished_at,omitempty"`
}
