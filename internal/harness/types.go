package harness

// Outcome of a step that completed without a rejection.
const OutcomeOK = "ok"

// TraceEvent records one executed flow step.
type TraceEvent struct {
	// Step is the 1-based position of the step in the flow.
	Step   int    `json:"step"`
	Action string `json:"action"`

	// Args are the step inputs, with accounts by scenario name.
	Args map[string]string `json:"args,omitempty"`

	// Outcome is OutcomeOK or the exchange error code the step failed with.
	Outcome string `json:"outcome"`

	Result map[string]string `json:"result,omitempty"`
}

// EntrySnapshot is one round entry with accounts by scenario name.
type EntrySnapshot struct {
	Account    string `json:"account"`
	Points     uint64 `json:"points"`
	Proportion string `json:"proportion,omitempty"`
	Take       string `json:"take,omitempty"`
}

// RoundSnapshot is a stored round at the end of a scenario.
type RoundSnapshot struct {
	Era     uint64          `json:"era"`
	Settled bool            `json:"settled"`
	Entries []EntrySnapshot `json:"entries"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains the flow steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Rounds contains every round left in the store, oldest era first.
	Rounds []RoundSnapshot `json:"rounds"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Rounds: []RoundSnapshot{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
