package runner

import (
	"encoding/json"
	"fmt"
)

// CheckError is one diagnostic as emitted by the checker's JSON output.
type CheckError struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Code     string `json:"code,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message"`
}

type checkOutput struct {
	Errors []CheckError `json:"errors"`
}

// ParseDiagnostics accepts both the enveloped form {"errors": [...]} and a
// bare array; checker versions have emitted both.
func ParseDiagnostics(data []byte) ([]CheckError, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var wrapped checkOutput
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Errors != nil {
		return wrapped.Errors, nil
	}

	var bare []CheckError
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("unrecognized checker output: %w", err)
	}
	return bare, nil
}

func SeverityLevel(s string) int {
	switch s {
	case "", "error":
		return 1
	case "warning":
		return 2
	case "info":
		return 3
	default:
		return 4
	}
}
