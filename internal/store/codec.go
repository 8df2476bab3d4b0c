package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"classcal/internal/model"
)

// EncodeDefinitions renders defs as an indented JSON array.
func EncodeDefinitions(defs []model.EventDefinition) ([]byte, error) {
	out := make([]model.EventDefinition, len(defs))
	for i, d := range defs {
		out[i] = normalize(d)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode definitions: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeDefinitions parses a JSON array of definitions. Empty input is an
// empty list.
func DecodeDefinitions(data []byte) ([]model.EventDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.EventDefinition{}, nil
	}
	var defs []model.EventDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	if defs == nil {
		defs = []model.EventDefinition{}
	}
	for i := range defs {
		defs[i] = normalize(defs[i])
	}
	return defs, nil
}

// normalize replaces nil slices with empty ones so the JSON shape is stable.
func normalize(d model.EventDefinition) model.EventDefinition {
	if d.Weekdays == nil {
		d.Weekdays = []string{}
	}
	if d.ExceptionDates == nil {
		d.ExceptionDates = []string{}
	}
	return d
}

func clone(defs []model.EventDefinition) []model.EventDefinition {
	out := make([]model.EventDefinition, len(defs))
	for i, d := range defs {
		d.Weekdays = append([]string{}, d.Weekdays...)
		d.ExceptionDates = append([]string{}, d.ExceptionDates...)
		out[i] = d
	}
	return out
}
