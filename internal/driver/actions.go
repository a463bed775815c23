package driver

import (
	"context"
	"strings"

	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/payload"
	"github.com/roach88/drill/internal/template"
)

// Contract action names.
const (
	ActSignup      = "signup"
	ActNewChar     = "newchar"
	ActWork        = "work"
	ActJoinFaction = "joinfaction"
	ActSetRole     = "setrole"
	ActUpgrade     = "upgrade"
	ActClaim       = "claim"
	ActRegCand     = "regcand"
	ActVote        = "vote"
	ActOpen        = "open"
	ActStake       = "stake"
	ActPropose     = "propose"
	ActVoteProp    = "voteprop"
)

// Contract tables read by the driver, besides the joined squads/rosters.
const (
	TableCharacters = "characters"
	TableProposals  = "proposals"
)

// Per-action outcome rules. Duplicates left by an earlier run are benign.
var (
	createRules   = outcome.Benign(`name is already taken`)
	signupRules   = outcome.Benign(`already signed up`)
	newCharRules  = outcome.Benign(`already has a character`)
	workRules     = outcome.Base
	factionRules  = outcome.Benign(`already part of faction`)
	roleRules     = outcome.Benign(`role already assigned`)
	upgradeRules  = outcome.Benign(`already holds role`)
	claimRules    = outcome.Benign(`nothing to claim`)
	regCandRules  = outcome.Benign(`already registered as candidate`)
	voteRules     = outcome.Benign(`already voted`)
	openRules     = outcome.Benign(`balance row already exists`)
	stakeRules    = outcome.Strict("overdrawn", `overdrawn balance`)
	proposeRules  = outcome.Benign(`already proposed`)
	votePropRules = outcome.Benign(`already voted`)
)

// push sends one contract action signed by actor.
func (r *Run) push(ctx context.Context, actor, contract, action string, args payload.Object, rules outcome.RuleSet) (outcome.Outcome, error) {
	cmd := template.Fill(r.cmd.PushAction(contract, action), payload.MustMarshal(args), actor)
	return r.invoke(ctx, actor, cmd, rules)
}

func charArgs(id uint64) payload.Object {
	return payload.Object{"charid": payload.Int(id)}
}

// fillActor renders a single-placeholder query template for actor.
func fillActor(tmpl, actor string) string {
	return template.Render(tmpl, actor)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
