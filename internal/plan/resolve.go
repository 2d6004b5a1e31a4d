package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Input is a resolved analysis input: raw SQL text, an already captured
// plan, or both when the plan came with its query.
type Input struct {
	SQL  string
	Plan *ExplainOutput
}

func Resolve(input string, label string) (Input, error) {
	data, err := readInput(input, label)
	if err != nil {
		return Input{}, err
	}

	switch detectType(data, input) {
	case "json":
		out, err := Parse(data)
		if err != nil {
			return Input{}, err
		}
		return Input{Plan: &out}, nil
	case "sql":
		trimmed := strings.TrimSpace(string(data))
		if trimmed == "" {
			return Input{}, fmt.Errorf("no SQL found in %sinput", label)
		}
		if strings.HasPrefix(strings.ToUpper(trimmed), "EXPLAIN") {
			return Input{}, fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
		}
		return Input{SQL: trimmed}, nil
	case "text":
		return Input{}, fmt.Errorf(`text format not supported - use JSON format:

EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) <your query>

Then provide the complete JSON output.`)
	default:
		return Input{}, fmt.Errorf("unable to detect %sinput type: expected JSON plan, SQL query, or .json/.sql file", label)
	}
}

// ReadText reads raw text from a file, stdin ("-"), or interactively ("").
func ReadText(input string, label string) (string, error) {
	data, err := readInput(input, label)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readInput(input string, label string) ([]byte, error) {
	switch input {
	case "":
		return readInteractive(label)
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", input, err)
		}
		return data, nil
	}
}

func readInteractive(label string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "Paste %sSQL query or EXPLAIN (FORMAT JSON) output", label)
	if runtime.GOOS == "windows" {
		fmt.Fprint(os.Stderr, " (Ctrl+Z, Enter to submit)\n")
	} else {
		fmt.Fprint(os.Stderr, " (Ctrl+D to submit)\n")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))

	if (strings.HasPrefix(trimmed, "[") ||
		strings.HasPrefix(trimmed, "{")) &&
		!json.Valid(data) {
		return nil, fmt.Errorf("input appears truncated; for large inputs use: queryinsight analyze <file>")
	}

	return data, nil
}

var sqlPrefixes = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "EXPLAIN", "VALUES", "TABLE"}

func detectType(data []byte, filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	}
	if strings.HasSuffix(filename, ".sql") {
		return "sql"
	}
	if strings.HasSuffix(filename, ".txt") {
		return "text"
	}

	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "json"
	}

	if strings.Contains(trimmed, "(cost=") {
		return "text"
	}

	upper := strings.ToUpper(trimmed)
	for _, prefix := range sqlPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return "sql"
		}
	}

	return "unknown"
}
