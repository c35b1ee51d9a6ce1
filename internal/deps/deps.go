package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program a pipeline stage shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup outcome for one Requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Blocking reports whether s is a missing program the pipeline cannot run without.
func (s Status) Blocking() bool {
	return !s.Available && !s.Optional
}

// CheckBinaries resolves every requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	return checkWith(requirements, exec.LookPath)
}

// Blocking filters statuses down to the required programs that are missing.
func Blocking(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Blocking() {
			out = append(out, s)
		}
	}
	return out
}

func checkWith(requirements []Requirement, lookPath func(string) (string, error)) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		st := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch _, err := lookPath(st.Command); {
		case st.Command == "":
			st.Detail = "command not configured"
		case err != nil:
			st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		default:
			st.Available = true
		}
		out[i] = st
	}
	return out
}
