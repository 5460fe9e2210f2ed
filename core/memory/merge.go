package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Merge Strategies
// =============================================================================

// Strategy controls how an incoming value combines with the stored value for
// the same key.
type Strategy int

const (
	// Replace overwrites the stored value.
	Replace Strategy = iota
	// AppendLog appends the incoming elements to a stored JSON array.
	AppendLog
	// MergeObject shallow-merges JSON objects; incoming keys win conflicts.
	MergeObject
)

// String returns the strategy's wire spelling.
func (s Strategy) String() string {
	switch s {
	case Replace:
		return "replace"
	case AppendLog:
		return "append_log"
	case MergeObject:
		return "merge_object"
	}
	return "unknown"
}

// ParseStrategy parses a strategy name as it appears in configuration.
func ParseStrategy(value string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "replace":
		return Replace, true
	case "append_log", "append-log", "appendlog":
		return AppendLog, true
	case "merge_object", "merge-object", "mergeobject":
		return MergeObject, true
	}
	return Replace, false
}

var (
	// ErrNotArray indicates an AppendLog merge against a non-array value.
	ErrNotArray = errors.New("append_log requires JSON array values")

	// ErrNotObject indicates a MergeObject merge against a non-object value.
	ErrNotObject = errors.New("merge_object requires JSON object values")

	// ErrUnknownStrategy indicates an unrecognized merge strategy.
	ErrUnknownStrategy = errors.New("unknown merge strategy")
)

// applyStrategy combines an incoming value with the existing stored value.
// existing is empty when the key has no stored value yet.
func applyStrategy(existing, incoming string, strategy Strategy) (string, error) {
	switch strategy {
	case Replace:
		return incoming, nil
	case AppendLog:
		return appendLog(existing, incoming)
	case MergeObject:
		return mergeObject(existing, incoming)
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownStrategy, strategy)
}

func appendLog(existing, incoming string) (string, error) {
	var log []json.RawMessage
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &log); err != nil {
			return "", fmt.Errorf("%w: stored value: %v", ErrNotArray, err)
		}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(incoming), &elements); err != nil {
		// A non-array incoming value is appended as a single element.
		raw := json.RawMessage(incoming)
		if !json.Valid(raw) {
			return "", fmt.Errorf("%w: incoming value is not valid JSON", ErrNotArray)
		}
		elements = []json.RawMessage{raw}
	}

	merged, err := json.Marshal(append(log, elements...))
	if err != nil {
		return "", err
	}
	return string(merged), nil
}

func mergeObject(existing, incoming string) (string, error) {
	merged := make(map[string]json.RawMessage)
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return "", fmt.Errorf("%w: stored value: %v", ErrNotObject, err)
		}
	}

	var overlay map[string]json.RawMessage
	if err := json.Unmarshal([]byte(incoming), &overlay); err != nil {
		return "", fmt.Errorf("%w: incoming value: %v", ErrNotObject, err)
	}

	for key, value := range overlay {
		merged[key] = value
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
