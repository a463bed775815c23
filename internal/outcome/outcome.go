// Package outcome classifies backend command results into control-flow outcomes.
//
// Classification is an ordered pattern match; the first matching rule wins:
//
//  1. the process never produced an exit status (could not start, killed) → InvocationFailure
//  2. a Fatal rule matches                                         → FatalRejection
//  3. a Benign rule matches                                        → BenignDuplicate
//  4. a Recoverable rule matches                                   → RecoverableRejection
//  5. nonzero exit and nothing matched                             → InvocationFailure
//  6. otherwise                                                    → Success
//
// Rules are checked against the whole output, so a fatal rule takes
// precedence over benign and recoverable rules regardless of where in the
// text each pattern appears. The backend CLI exits nonzero on every rule
// rejection, which is why patterns are consulted before the exit status.
package outcome

import (
	"fmt"
	"regexp"
)

// Kind is the classification of one invocation result.
type Kind int

const (
	Success Kind = iota
	BenignDuplicate
	RecoverableRejection
	FatalRejection
	InvocationFailure
)

var kindNames = map[Kind]string{
	Success:              "Success",
	BenignDuplicate:      "BenignDuplicate",
	RecoverableRejection: "RecoverableRejection",
	FatalRejection:       "FatalRejection",
	InvocationFailure:    "InvocationFailure",
}

// String returns the outcome name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Aborts reports whether the outcome ends the run.
func (k Kind) Aborts() bool {
	return k == FatalRejection || k == InvocationFailure
}

// Outcome is the result of classifying one invocation.
type Outcome struct {
	Kind Kind

	// Rule names the rule that matched, empty for Success and for
	// exit-status based failures.
	Rule string

	// Message is the game-rule message extracted from the output, if any.
	Message string
}

// Aborts reports whether the outcome ends the run.
func (o Outcome) Aborts() bool {
	return o.Kind.Aborts()
}

// String renders the outcome for logs.
func (o Outcome) String() string {
	if o.Rule == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Rule)
}

// Rule is one named output pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp

	// Unless, when set, vetoes a match. It lets a generic error-code rule
	// step aside for outputs that a more specific rule will handle.
	Unless *regexp.Regexp
}

// NewRule compiles a rule. It panics on an invalid pattern; rules are
// package-level tables built at init time.
func NewRule(name, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// Except returns a copy of r vetoed by the given pattern.
func (r Rule) Except(pattern string) Rule {
	r.Unless = regexp.MustCompile(pattern)
	return r
}

// Matches reports whether the rule applies to output.
func (r Rule) Matches(output string) bool {
	if r.Pattern == nil || !r.Pattern.MatchString(output) {
		return false
	}
	return r.Unless == nil || !r.Unless.MatchString(output)
}

// RuleSet is the ordered rule list a phase supplies to the classifier.
type RuleSet struct {
	Fatal       []Rule
	Benign      []Rule
	Recoverable []Rule
}

// With returns a new RuleSet with extra rules appended to each group.
// The receiver is not modified.
func (rs RuleSet) With(extra RuleSet) RuleSet {
	return RuleSet{
		Fatal:       append(append([]Rule(nil), rs.Fatal...), extra.Fatal...),
		Benign:      append(append([]Rule(nil), rs.Benign...), extra.Benign...),
		Recoverable: append(append([]Rule(nil), rs.Recoverable...), extra.Recoverable...),
	}
}

var assertionMessage = regexp.MustCompile(`assertion failure with message: ([^\n]*)`)

// Classify maps (output, exitStatus) to an Outcome. A negative exitStatus
// means the process did not exit normally.
func Classify(rules RuleSet, output string, exitStatus int) Outcome {
	if exitStatus < 0 {
		return Outcome{Kind: InvocationFailure}
	}

	groups := []struct {
		kind  Kind
		rules []Rule
	}{
		{FatalRejection, rules.Fatal},
		{BenignDuplicate, rules.Benign},
		{RecoverableRejection, rules.Recoverable},
	}
	for _, g := range groups {
		for _, r := range g.rules {
			if r.Matches(output) {
				return Outcome{Kind: g.kind, Rule: r.Name, Message: extractMessage(output)}
			}
		}
	}

	if exitStatus != 0 {
		return Outcome{Kind: InvocationFailure, Message: extractMessage(output)}
	}
	return Outcome{Kind: Success}
}

func extractMessage(output string) string {
	m := assertionMessage.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}
