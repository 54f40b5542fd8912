package sink

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360/httpsink/errors"
)

// Action classifies an HTTP status code into a delivery decision.
type Action int

const (
	// ActionRetry re-attempts delivery per the retry scheduler
	ActionRetry Action = iota
	// ActionSuccess treats the response as delivered
	ActionSuccess
	// ActionFail abandons the batch immediately, no further retries
	ActionFail
)

// String returns the string representation of Action
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionSuccess:
		return "success"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseAction converts a configuration string to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retry":
		return ActionRetry, nil
	case "success", "skip":
		return ActionSuccess, nil
	case "fail":
		return ActionFail, nil
	default:
		return ActionFail, errors.WrapInvalid(errors.ErrInvalidConfig, "PolicyTable", "ParseAction",
			fmt.Sprintf("unsupported action %q, must be one of retry, success, fail", s))
	}
}

// ErrorHandlingEntry is one configured (status-code regex, action) pair.
type ErrorHandlingEntry struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Action  string `json:"action"  yaml:"action"`
}

type policyEntry struct {
	pattern *regexp.Regexp
	action  Action
}

// PolicyTable resolves HTTP status codes to delivery actions. Entries are
// evaluated in declaration order; the first regex matching the 3-digit form
// of the code wins. Network failures are resolved as status code 0.
//
// Resolution is deterministic and side-effect-free for the table's lifetime.
type PolicyTable struct {
	entries       []policyEntry
	defaultAction *Action
}

// NewPolicyTable compiles the configured entries. Invalid regex patterns fail
// fast with the offending pattern in the error. An empty defaultAction keeps
// the built-in fallback: success on 2xx, retry on 5xx and network failure,
// fail otherwise.
func NewPolicyTable(entries []ErrorHandlingEntry, defaultAction string) (*PolicyTable, error) {
	table := &PolicyTable{entries: make([]policyEntry, 0, len(entries))}

	for _, entry := range entries {
		pattern, err := regexp.Compile(entry.Pattern)
		if err != nil {
			return nil, errors.WrapInvalid(err, "PolicyTable", "NewPolicyTable",
				fmt.Sprintf("error handling regex %q is not valid", entry.Pattern))
		}
		action, err := ParseAction(entry.Action)
		if err != nil {
			return nil, err
		}
		table.entries = append(table.entries, policyEntry{pattern: pattern, action: action})
	}

	if defaultAction != "" {
		action, err := ParseAction(defaultAction)
		if err != nil {
			return nil, err
		}
		table.defaultAction = &action
	}

	return table, nil
}

// Resolve returns the action of the first entry matching the status code.
func (t *PolicyTable) Resolve(statusCode int) Action {
	code := strconv.Itoa(statusCode)

	for _, entry := range t.entries {
		if entry.pattern.MatchString(code) {
			return entry.action
		}
	}

	if t.defaultAction != nil {
		return *t.defaultAction
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return ActionSuccess
	case statusCode == 0 || statusCode >= 500:
		return ActionRetry
	default:
		return ActionFail
	}
}
