// Package status defines the ordered status codes shared by job pairs and
// their stages.
//
// Codes are persisted as integers. Numeric order follows family order:
// pending < enqueued < running < processing < complete < resource < error.
package status

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a persisted job pair (or stage) status.
type Code int

const (
	PendingSubmit Code = iota + 1
	Paused
	Enqueued
	Preparing
	Running
	Finishing
	WaitResults
	Processing
	Complete
	ExceedRuntime
	ExceedCPU
	ExceedFileWrite
	ExceedMem
	ErrorBackendReject
	ErrorSubmitFail
	ErrorResults
	ErrorRunscript
	ErrorBenchmark
	ErrorDiskQuota
	ErrorBenchDependencyMissing
	ErrorGeneral
	Killed
	NotReached
	Unknown
)

// Family groups codes by lifecycle phase.
type Family int

const (
	FamilyInvalid Family = iota
	FamilyPending
	FamilyEnqueued
	FamilyRunning
	FamilyProcessing
	FamilyComplete
	FamilyResource
	FamilyError
)

var names = map[Code]string{
	PendingSubmit:               "pending_submit",
	Paused:                      "paused",
	Enqueued:                    "enqueued",
	Preparing:                   "preparing",
	Running:                     "running",
	Finishing:                   "finishing",
	WaitResults:                 "wait_results",
	Processing:                  "processing",
	Complete:                    "complete",
	ExceedRuntime:               "exceed_runtime",
	ExceedCPU:                   "exceed_cpu",
	ExceedFileWrite:             "exceed_file_write",
	ExceedMem:                   "exceed_mem",
	ErrorBackendReject:          "error_backend_reject",
	ErrorSubmitFail:             "error_submit_fail",
	ErrorResults:                "error_results",
	ErrorRunscript:              "error_runscript",
	ErrorBenchmark:              "error_benchmark",
	ErrorDiskQuota:              "error_disk_quota",
	ErrorBenchDependencyMissing: "error_bench_dependency_missing",
	ErrorGeneral:                "error_general",
	Killed:                      "killed",
	NotReached:                  "not_reached",
	Unknown:                     "unknown",
}

// All returns every valid code in ascending order.
func All() []Code {
	out := make([]Code, 0, int(Unknown))
	for c := PendingSubmit; c <= Unknown; c++ {
		out = append(out, c)
	}
	return out
}

func (c Code) Valid() bool {
	return c >= PendingSubmit && c <= Unknown
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "invalid(" + strconv.Itoa(int(c)) + ")"
}

// Family returns the lifecycle family of the code.
func (c Code) Family() Family {
	switch {
	case c == PendingSubmit || c == Paused:
		return FamilyPending
	case c == Enqueued:
		return FamilyEnqueued
	case c >= Preparing && c <= WaitResults:
		return FamilyRunning
	case c == Processing:
		return FamilyProcessing
	case c == Complete:
		return FamilyComplete
	case c >= ExceedRuntime && c <= ExceedMem:
		return FamilyResource
	case c >= ErrorBackendReject && c <= Unknown:
		return FamilyError
	default:
		return FamilyInvalid
	}
}

// Incomplete reports whether the pair has not yet reached a terminal state.
func (c Code) Incomplete() bool {
	return c >= PendingSubmit && c <= Processing
}

// StatComplete reports whether the code is a terminal success or
// resource-exceeded code that counts toward statistics.
func (c Code) StatComplete() bool {
	return c >= Complete && c <= ExceedMem
}

// Resource reports whether the pair ran out of a resource limit.
func (c Code) Resource() bool {
	return c.Family() == FamilyResource
}

// Failed reports whether the code is in the error family.
func (c Code) Failed() bool {
	return c.Family() == FamilyError
}

// Terminal reports whether the code will not change without a rerun.
func (c Code) Terminal() bool {
	return c.StatComplete() || c.Failed()
}

// OnBackend reports whether the execution backend holds a live execution
// for a pair in this state.
func (c Code) OnBackend() bool {
	return c >= Enqueued && c <= Finishing
}

// Parse accepts a status name ("exceed_mem", "EXCEED-MEM") or its integer value.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("status is empty")
	}
	if n, err := strconv.Atoi(s); err == nil {
		c := Code(n)
		if !c.Valid() {
			return 0, fmt.Errorf("unknown status code %d", n)
		}
		return c, nil
	}
	norm := strings.ToLower(strings.ReplaceAll(s, "-", "_"))
	for c, n := range names {
		if n == norm {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
