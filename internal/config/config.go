// Package config validates run inputs before any backend call.
//
// Positional arguments become an immutable RunConfig. Operational settings
// (poll interval, journal path, stake duration) come from the environment
// with defaults, and CLI flags override them.
package config

import (
	"regexp"
	"strconv"

	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/sequencer"
)

// PublicKeyLen is the length of a legacy-format public key string.
const PublicKeyLen = 53

// MaxPrefixLen bounds the actor prefix so prefix+suffix fits a 12-char account name.
const MaxPrefixLen = 12 - sequencer.SuffixLen

// RunArgs is the number of positional arguments of a protocol run.
const RunArgs = 8

var (
	accountPattern = regexp.MustCompile(`^[a-z1-5.]{1,12}$`)
	prefixPattern  = regexp.MustCompile(`^[a-z1-5]{0,6}$`)
)

// RunConfig holds the validated inputs of one run. It is never mutated
// after Parse returns.
type RunConfig struct {
	Backend     string
	Account     string
	PublicKey   string
	Variant     Variant
	ActorPrefix string
	Actors      int
	Faction     int
	Seed        int64
}

// Network returns the contracts of the selected variant.
func (c RunConfig) Network() Network {
	return networks[c.Variant]
}

// Parse validates the positional arguments:
//
//	<backend-prefix> <account> <pubkey> <variant> <actor-prefix> <n> <faction> <seed>
func Parse(args []string) (RunConfig, error) {
	if len(args) != RunArgs {
		return RunConfig{}, invalid("expected %d arguments, got %d", RunArgs, len(args))
	}

	cfg := RunConfig{
		Backend:     args[0],
		Account:     args[1],
		PublicKey:   args[2],
		ActorPrefix: args[4],
	}

	if cfg.Backend == "" {
		return RunConfig{}, invalid("backend prefix is empty")
	}
	if !accountPattern.MatchString(cfg.Account) {
		return RunConfig{}, invalid("account %q: want 1-12 characters from a-z, 1-5 and '.'", cfg.Account)
	}
	if len(cfg.PublicKey) != PublicKeyLen {
		return RunConfig{}, invalid("public key: want %d characters, got %d", PublicKeyLen, len(cfg.PublicKey))
	}

	variant, err := ParseVariant(args[3])
	if err != nil {
		return RunConfig{}, err
	}
	cfg.Variant = variant

	if !prefixPattern.MatchString(cfg.ActorPrefix) {
		return RunConfig{}, invalid("actor prefix %q: want at most %d characters from a-z and 1-5", cfg.ActorPrefix, MaxPrefixLen)
	}

	n, err := strconv.Atoi(args[5])
	if err != nil {
		return RunConfig{}, invalid("actor count %q is not an integer", args[5])
	}
	if n <= 0 || n > sequencer.Capacity {
		return RunConfig{}, invalid("actor count %d: want 1..%d", n, sequencer.Capacity)
	}
	cfg.Actors = n

	faction, err := strconv.Atoi(args[6])
	if err != nil || faction < 1 || faction > 4 {
		return RunConfig{}, invalid("faction %q: want 1, 2, 3 or 4", args[6])
	}
	cfg.Faction = faction

	seed, err := strconv.ParseInt(args[7], 10, 64)
	if err != nil {
		return RunConfig{}, invalid("seed %q is not a 64-bit integer", args[7])
	}
	cfg.Seed = seed

	return cfg, nil
}

// ActorNames returns the run's actors in processing order.
func (c RunConfig) ActorNames() ([]string, error) {
	names, err := sequencer.Names(c.ActorPrefix, sequencer.Start, c.Actors)
	if err != nil {
		return nil, fault.Wrap(fault.CodeExhausted, err, "actor names")
	}
	return names, nil
}

func invalid(format string, args ...any) error {
	return fault.New(fault.CodeConfiguration, format, args...)
}
