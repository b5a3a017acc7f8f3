package process

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ToolConfig describes one allow-listed command.
type ToolConfig struct {
	Name        string            `mapstructure:"name"`
	Command     string            `mapstructure:"command"`
	Args        []string          `mapstructure:"args"`
	Environment map[string]string `mapstructure:"env"`
	// Dir is the working directory, relative to the manifest's directory.
	Dir         string `mapstructure:"dir"`
	Description string `mapstructure:"description"`
}

// Manifest is the tools file:
//
//	tools:
//	  - name: lint
//	    command: ./scripts/lint.sh
//	    args: ["--fast"]
//	    env: {MODE: strict}
type Manifest struct {
	Tools []ToolConfig `mapstructure:"tools"`
}

// LoadTools reads a YAML or JSON manifest (by extension) and returns its tools by name.
// A missing file means no process tools are configured. Unknown keys, entries
// without a name or command, and duplicate names are errors.
func LoadTools(path string) (map[string]ToolConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]ToolConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tools manifest: %w", err)
	}

	raw := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var manifest Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true, // `args: [1, 2]` and `env: {DEBUG: true}` become strings
		Result:           &manifest,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid tools manifest %s: %w", path, err)
	}

	tools := make(map[string]ToolConfig, len(manifest.Tools))
	var errs []error
	for i, tool := range manifest.Tools {
		switch {
		case tool.Name == "":
			errs = append(errs, fmt.Errorf("tools[%d]: name is required", i))
		case tool.Command == "":
			errs = append(errs, fmt.Errorf("tool %q: command is required", tool.Name))
		default:
			if _, dup := tools[tool.Name]; dup {
				errs = append(errs, fmt.Errorf("tool %q: declared more than once", tool.Name))
				continue
			}
			tools[tool.Name] = tool
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid tools manifest %s: %w", path, err)
	}
	return tools, nil
}
