// Package loader decodes graph definitions from YAML or JSON documents into domain.GraphSpec.
//
// Nodes accept two shapes: the full object form ({function, description}) or a bare string
// naming the tool. Operators are normalised but not rejected here; ValidateGraph reports them
// together with every other problem in the graph.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format identifies the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath guesses the format from the file extension. Anything that is not .json is YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads and decodes a graph file.
func LoadFile(path string) (domain.GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	spec, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return domain.GraphSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a graph document.
func Parse(data []byte, format Format) (domain.GraphSpec, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return domain.GraphSpec{}, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.GraphSpec{}, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}
	return Decode(raw)
}

// Decode converts a generic document (as produced by a JSON or YAML decoder) into a GraphSpec.
// Unknown keys are rejected so typos like "conditional_edge" do not go unnoticed.
func Decode(raw map[string]any) (domain.GraphSpec, error) {
	var spec domain.GraphSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(nodeShorthandHook, operatorHook, jsonNumberHook),
		ErrorUnused: true,
		Result:      &spec,
	})
	if err != nil {
		return domain.GraphSpec{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.GraphSpec{}, fmt.Errorf("invalid graph document: %w", err)
	}
	return spec, nil
}

// ParseState decodes a JSON object into a State. Empty input yields an empty State.
func ParseState(data []byte) (domain.State, error) {
	state := domain.State{}
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("state must be a JSON object: %w", err)
	}
	return state, nil
}

var (
	nodeSpecType = reflect.TypeOf(domain.NodeSpec{})
	operatorType = reflect.TypeOf(domain.Operator(""))
	jsonNumType  = reflect.TypeOf(json.Number(""))
)

// nodeShorthandHook lets `extract: extract_functions` stand for {function: extract_functions}.
func nodeShorthandHook(from, to reflect.Type, data any) (any, error) {
	if to != nodeSpecType || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]any{"function": data}, nil
}

func operatorHook(from, to reflect.Type, data any) (any, error) {
	if to != operatorType || from.Kind() != reflect.String {
		return data, nil
	}
	op, err := domain.ParseOperator(data.(string))
	if err != nil {
		// Left for the validator, which reports it alongside the other issues.
		return data, nil
	}
	return op, nil
}

// jsonNumberHook resolves json.Number values. Interface fields (condition values) get an
// int64 when the number is integral and a float64 otherwise.
func jsonNumberHook(from, to reflect.Type, data any) (any, error) {
	if from != jsonNumType {
		return data, nil
	}
	n := data.(json.Number)
	switch to.Kind() {
	case reflect.Interface:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", n, err)
		}
		return i, nil
	case reflect.Float32, reflect.Float64:
	case reflect.String:
		return n.String(), nil
	default:
		return data, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n, err)
	}
	return f, nil
}
