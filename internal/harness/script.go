package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Script defines a scripted backend.
type Script struct {
	// Name identifies the script and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the script rehearses.
	Description string `yaml:"description"`

	// Rules answer matching commands, first match wins.
	Rules []Rule `yaml:"rules"`

	// Default answers commands no rule matches. If nil, such commands fail
	// with exit status 127.
	Default *Response `yaml:"default,omitempty"`
}

// Rule answers commands matching a pattern.
type Rule struct {
	// Name labels the rule in traces. Defaults to "rules[i]".
	Name string `yaml:"name,omitempty"`

	// Match is a regular expression searched for in the command line.
	Match string `yaml:"match"`

	// Responses are returned in order; the last one repeats.
	Responses []Response `yaml:"responses"`

	pattern *regexp.Regexp
}

// Response is one canned backend reply.
type Response struct {
	Output string `yaml:"output"`
	Exit   int    `yaml:"exit,omitempty"`
}

// LoadScript reads and parses a script file, YAML or CUE by extension.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return ParseCUEScript(data, path)
	}
	return ParseScript(data)
}

// ParseScript parses and validates script YAML.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := script.compile(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

// compile validates required fields and compiles rule patterns.
func (s *Script) compile() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Rules) == 0 && s.Default == nil {
		return fmt.Errorf("rules list or default is required")
	}

	for i := range s.Rules {
		r := &s.Rules[i]
		if r.Match == "" {
			return fmt.Errorf("rules[%d]: match is required", i)
		}
		if len(r.Responses) == 0 {
			return fmt.Errorf("rules[%d]: responses list is required and must be non-empty", i)
		}
		p, err := regexp.Compile(r.Match)
		if err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		r.pattern = p
		if r.Name == "" {
			r.Name = fmt.Sprintf("rules[%d]", i)
		}
	}
	return nil
}
