// Package probe implements the client-side checks that verify a host
// can reach an insitu server and be called back by it.
package probe

import (
	"fmt"
	"io"
)

// Status is the outcome of a single check.
type Status int

const (
	NotCompleted Status = iota
	Passed
	Warning
	NoResult
	Failed
)

func (s Status) String() string {
	switch s {
	case NotCompleted:
		return "Not Completed"
	case Passed:
		return "Passed"
	case Warning:
		return "Warning"
	case NoResult:
		return "No Result"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is one line of the probe report.
type Result struct {
	Status      Status
	Problem     string
	Description string
}

func newResult(s Status, problem, desc string) Result {
	return Result{Status: s, Problem: problem, Description: desc}
}

// String renders r as "<Status>: <problem>\n<description>".
func (r Result) String() string {
	return fmt.Sprintf("%s: %s\n%s", r.Status, r.Problem, r.Description)
}

// NoReply reports whether r is an echo check that got no answer.
func (r Result) NoReply() bool { return r.Problem == ProblemNoReply }

// Report collects results in the order the checks ran.
type Report struct {
	Results []Result
}

// Add appends r.
func (rep *Report) Add(r Result) {
	rep.Results = append(rep.Results, r)
}

// Failed reports whether any check failed.
func (rep *Report) Failed() bool {
	for _, r := range rep.Results {
		if r.Status == Failed {
			return true
		}
	}
	return false
}

// WriteTo prints every result followed by a newline.
func (rep *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, r := range rep.Results {
		n, err := fmt.Fprintln(w, r.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
