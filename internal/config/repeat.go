package config

import (
	"strconv"

	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/sequencer"
	"github.com/roach88/drill/internal/template"
)

// RepeatConfig holds the inputs of the repeat utility.
type RepeatConfig struct {
	Backend  string
	Prefix   string
	Start    string
	Count    int
	Template string
}

// ParseRepeat validates:
//
//	<backend-prefix> <start-name> <count> <template>
//
// The last six characters of start-name are the counter; the rest is a
// fixed prefix.
func ParseRepeat(args []string) (RepeatConfig, error) {
	if len(args) != 4 {
		return RepeatConfig{}, invalid("expected 4 arguments, got %d", len(args))
	}

	start := args[1]
	if len(start) < sequencer.SuffixLen || len(start) > 12 {
		return RepeatConfig{}, invalid("start name %q: want 6-12 characters", start)
	}
	cut := len(start) - sequencer.SuffixLen
	cfg := RepeatConfig{
		Backend:  args[0],
		Prefix:   start[:cut],
		Start:    start[cut:],
		Template: args[3],
	}
	for _, c := range cfg.Start {
		if c < 'a' || c > 'z' {
			return RepeatConfig{}, invalid("start name %q: last %d characters must be a-z", start, sequencer.SuffixLen)
		}
	}

	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 {
		return RepeatConfig{}, invalid("count %q: want a positive integer", args[2])
	}
	cfg.Count = n

	if template.Count(cfg.Template) == 0 {
		return RepeatConfig{}, invalid("template %q has no %s placeholder", cfg.Template, template.Placeholder)
	}
	return cfg, nil
}

// Names returns the names the repeat utility visits.
func (c RepeatConfig) Names() ([]string, error) {
	names, err := sequencer.Names(c.Prefix, c.Start, c.Count)
	if err != nil {
		return nil, fault.Wrap(fault.CodeExhausted, err, "repeat names")
	}
	return names, nil
}
