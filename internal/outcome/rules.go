package outcome

// Rules shared by every phase. Phase-specific benign patterns are layered on
// top with RuleSet.With.
var (
	// Authorization failures always abort: nothing later in the run can succeed.
	AuthorizationRule = NewRule("authorization",
		`(?i)missing authority of|do not satisfy declared authorizations|missing required authority`)

	// Any backend error code that is not a game-rule assertion or a name clash.
	ErrorCodeRule = NewRule("error-code", `(?m)^Error \d+:`).
			Except(`assertion failure with message|name is already taken`)

	// Contract assertions: the game refused the action for its own reasons.
	AssertionRule = NewRule("assertion", `assertion failure with message`)
)

// Base is the rule set every phase starts from.
var Base = RuleSet{
	Fatal:       []Rule{AuthorizationRule, ErrorCodeRule},
	Recoverable: []Rule{AssertionRule},
}

// Benign returns Base with the given benign duplicate patterns added.
func Benign(patterns ...string) RuleSet {
	extra := RuleSet{}
	for _, p := range patterns {
		extra.Benign = append(extra.Benign, NewRule("duplicate", p))
	}
	return Base.With(extra)
}

// Strict returns Base with the given patterns promoted to fatal ahead of the
// generic assertion rule.
func Strict(name string, patterns ...string) RuleSet {
	extra := RuleSet{}
	for _, p := range patterns {
		extra.Fatal = append(extra.Fatal, NewRule(name, p))
	}
	return Base.With(extra)
}
