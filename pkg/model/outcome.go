package model

// Attribute keys holding the solver's answer and the benchmark's expected answer.
const (
	ResultAttribute   = "starexec-result"
	ExpectedAttribute = "starexec-expected-result"
)

// UnknownResult is the answer a solver reports when it could not decide.
const UnknownResult = "unknown"

// Classification is the correctness verdict for a completed stage.
type Classification int

const (
	Correct Classification = iota
	Incorrect
	Unclassified
)

func (c Classification) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// Outcome pairs a stage's reported answer with the benchmark's expected answer.
type Outcome struct {
	Actual   *string `json:"actual,omitempty"`
	Expected *string `json:"expected,omitempty"`
}

// NewOutcome builds an Outcome; empty strings mean "absent".
func NewOutcome(actual, expected string) Outcome {
	var o Outcome
	if actual != "" {
		o.Actual = &actual
	}
	if expected != "" {
		o.Expected = &expected
	}
	return o
}

// Classify compares the actual and expected answers.
func (o Outcome) Classify() Classification {
	if o.Actual == nil || o.Expected == nil {
		return Unclassified
	}
	if *o.Actual == *o.Expected {
		return Correct
	}
	return Incorrect
}

// KnownResult returns the actual answer when it is present and decided.
func (o Outcome) KnownResult() (string, bool) {
	if o.Actual == nil || *o.Actual == "" || *o.Actual == UnknownResult {
		return "", false
	}
	return *o.Actual, true
}
