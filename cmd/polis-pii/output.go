package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var errNoText = errors.New("no input text: pass it as arguments or on stdin")

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// writeOutput renders v in the selected format.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// readText returns the positional arguments joined by spaces, or all of
// stdin when there are none or the only argument is "-".
func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return "", errNoText
	}
	return text, nil
}

// readSessionRecord loads a session record from a JSON or YAML file. Both the
// bare record and the full output of the mask command are accepted.
func readSessionRecord(path string) (map[string]any, error) {
	//nolint:gosec // Session file path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	if nested, ok := doc["session_data"].(map[string]any); ok {
		return nested, nil
	}
	return doc, nil
}
