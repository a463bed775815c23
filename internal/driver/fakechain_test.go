package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/drill/internal/backend"
)

const (
	txOK      = "executed transaction: 5f1c  128 bytes  400 us\n"
	assertFmt = "Error 3050003: eosio_assert_message assertion failure\nError Details:\nassertion failure with message: %s\n"
)

var (
	createRe  = regexp.MustCompile(`create account (\S+) (\S+) `)
	pushRe    = regexp.MustCompile(`push action (\S+) (\S+) '(.*)' -p (\S+)@active$`)
	tableRe   = regexp.MustCompile(`get table (\S+) \S+ (\S+) --limit \d+(?: -L (\d+))?$`)
	balanceRe = regexp.MustCompile(`get currency balance (\S+) (\S+) (\S+)$`)
)

type character struct {
	ID      uint64
	Owner   string
	Role    int
	Faction int
}

type proposal struct {
	ID       uint64
	SquadID  uint64
	Proposer string
	Ranking  []string
}

// fakeChain is an in-memory game backend speaking the CLI's text protocol.
type fakeChain struct {
	pageSize int

	accounts map[string]bool
	signedUp map[string]bool
	chars    []*character
	balances map[string]int64
	claims   map[string]int

	// claimsToFund is how many claims an actor needs before its balance
	// becomes positive.
	claimsToFund int

	// funding, when set, is the balance in base units every funded actor
	// receives instead of the per-character default.
	funding int64

	candidates map[string]bool
	votes      map[string]map[int]uint64
	stakes     map[string]string

	// squadFetchesToForm is how many squads-table reads happen before the
	// backend forms squads.
	squadFetchesToForm int
	squadSize          int
	squadFetches       int
	squads             [][]string

	proposals []proposal
	propVotes map[string]uint64

	commands []string

	// fail, when set, overrides the reply to matching commands.
	fail func(cmd string) (backend.Result, bool)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		pageSize:           2,
		accounts:           map[string]bool{},
		signedUp:           map[string]bool{},
		balances:           map[string]int64{},
		claims:             map[string]int{},
		claimsToFund:       2,
		candidates:         map[string]bool{},
		votes:              map[string]map[int]uint64{},
		stakes:             map[string]string{},
		squadFetchesToForm: 2,
		squadSize:          3,
		propVotes:          map[string]uint64{},
	}
}

func (c *fakeChain) Invoke(_ context.Context, cmd string) backend.Result {
	c.commands = append(c.commands, cmd)
	if c.fail != nil {
		if res, ok := c.fail(cmd); ok {
			return res
		}
	}

	if m := createRe.FindStringSubmatch(cmd); m != nil {
		return c.createAccount(m[2])
	}
	if m := pushRe.FindStringSubmatch(cmd); m != nil {
		var args map[string]any
		dec := json.NewDecoder(strings.NewReader(m[3]))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return backend.Result{Output: "Error 3015014: Couldn't parse action args\n", ExitStatus: 1}
		}
		return c.push(m[1], m[2], args, m[4])
	}
	if m := tableRe.FindStringSubmatch(cmd); m != nil {
		return c.table(m[2], m[3])
	}
	if m := balanceRe.FindStringSubmatch(cmd); m != nil {
		return c.balance(m[2], m[3])
	}
	return backend.Result{Output: "ERROR: unknown command\n", ExitStatus: 127}
}

func rejected(msg string) backend.Result {
	return backend.Result{Output: fmt.Sprintf(assertFmt, msg), ExitStatus: 1}
}

func (c *fakeChain) createAccount(name string) backend.Result {
	if c.accounts[name] {
		return backend.Result{
			Output: "Error 3050001: Account name already exists\nError Details:\nCannot create account named " +
				name + ", as that name is already taken\n",
			ExitStatus: 1,
		}
	}
	c.accounts[name] = true
	return backend.Result{Output: txOK}
}

func num(args map[string]any, k string) uint64 {
	n, _ := strconv.ParseUint(fmt.Sprint(args[k]), 10, 64)
	return n
}

func (c *fakeChain) charByID(id uint64) *character {
	for _, ch := range c.chars {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

func (c *fakeChain) push(contract, action string, args map[string]any, signer string) backend.Result {
	if !c.accounts[signer] {
		return backend.Result{
			Output:     "Error 3090003: Provided keys, permissions, and delays do not satisfy declared authorizations\n",
			ExitStatus: 1,
		}
	}

	switch action {
	case "signup":
		if c.signedUp[signer] {
			return rejected("already signed up")
		}
		c.signedUp[signer] = true
	case "newchar":
		for _, ch := range c.chars {
			if ch.Owner == signer {
				return rejected("already has a character")
			}
		}
		c.chars = append(c.chars, &character{ID: uint64(len(c.chars) + 100), Owner: signer})
	case "work", "claim":
		ch := c.charByID(num(args, "charid"))
		if ch == nil || ch.Owner != signer {
			return rejected("not your character")
		}
		if action == "claim" {
			c.claims[signer]++
			if c.claims[signer] >= c.claimsToFund {
				c.balances[signer] = 1234567 + int64(ch.ID)
				if c.funding != 0 {
					c.balances[signer] = c.funding
				}
			}
		}
	case "joinfaction":
		ch := c.charByID(num(args, "charid"))
		if ch.Faction != 0 {
			return rejected("already part of faction")
		}
		ch.Faction = int(num(args, "faction"))
	case "setrole":
		ch := c.charByID(num(args, "charid"))
		if ch.Role != 0 {
			return rejected("role already assigned")
		}
		ch.Role = int(num(args, "role"))
	case "upgrade":
		ch := c.charByID(num(args, "charid"))
		ch.Role = int(num(args, "role"))
	case "regcand":
		c.candidates[signer] = true
	case "vote":
		if c.votes[signer] == nil {
			c.votes[signer] = map[int]uint64{}
		}
		c.votes[signer][int(num(args, "role"))] = num(args, "candidate")
	case "open":
	case "stake":
		c.stakes[signer] = fmt.Sprint(args["quantity"])
	case "propose":
		var ranking []string
		for _, m := range args["ranking"].([]any) {
			ranking = append(ranking, m.(string))
		}
		c.proposals = append(c.proposals, proposal{
			ID:       uint64(len(c.proposals) + 1),
			SquadID:  num(args, "squad_id"),
			Proposer: signer,
			Ranking:  ranking,
		})
	case "voteprop":
		if _, ok := c.propVotes[signer]; ok {
			return rejected("already voted")
		}
		c.propVotes[signer] = num(args, "proposal_id")
	default:
		return backend.Result{Output: "Error 3040004: unknown action " + contract + "::" + action + "\n", ExitStatus: 1}
	}
	return backend.Result{Output: txOK}
}

func (c *fakeChain) balance(actor, symbol string) backend.Result {
	units, ok := c.balances[actor]
	if !ok {
		return backend.Result{}
	}
	return backend.Result{Output: fmt.Sprintf("%d.%04d %s\n", units/10000, units%10000, symbol)}
}

// formSquads groups character owners into squads of squadSize in name order.
func (c *fakeChain) formSquads() {
	owners := make([]string, 0, len(c.chars))
	for _, ch := range c.chars {
		owners = append(owners, ch.Owner)
	}
	sort.Strings(owners)
	for len(owners) > 0 {
		n := min(c.squadSize, len(owners))
		c.squads = append(c.squads, owners[:n])
		owners = owners[n:]
	}
}

func (c *fakeChain) rows(table string) []any {
	var rows []any
	switch table {
	case "characters":
		for _, ch := range c.chars {
			rows = append(rows, map[string]any{"id": ch.ID, "owner": ch.Owner, "role": ch.Role, "faction": ch.Faction})
		}
	case "squads":
		for i := range c.squads {
			rows = append(rows, map[string]any{"id": i + 1, "faction": 1, "role": 1, "active": 1})
		}
	case "rosters":
		// Listed newest first so the join cannot rely on table order.
		for i := len(c.squads) - 1; i >= 0; i-- {
			var members []any
			for j, m := range c.squads[i] {
				members = append(members, map[string]any{"key": m, "value": j + 1})
			}
			rows = append(rows, map[string]any{"id": 50 + i, "squad_id": strconv.Itoa(i + 1), "members": members})
		}
	case "proposals":
		for _, p := range c.proposals {
			rows = append(rows, map[string]any{"id": p.ID, "squad_id": p.SquadID, "proposer": p.Proposer, "ranking": p.Ranking})
		}
	}
	return rows
}

func (c *fakeChain) table(table, lower string) backend.Result {
	if table == "squads" && lower == "" {
		c.squadFetches++
		if c.squads == nil && c.squadFetches > c.squadFetchesToForm {
			c.formSquads()
		}
	}

	rows := c.rows(table)
	start, _ := strconv.Atoi(lower)
	start = min(start, len(rows))
	end := min(start+c.pageSize, len(rows))

	page := map[string]any{"rows": rows[start:end], "more": end < len(rows), "next_key": ""}
	if end < len(rows) {
		page["next_key"] = strconv.Itoa(end)
	}
	if end == start {
		page["rows"] = []any{}
	}
	out, _ := json.Marshal(page)
	return backend.Result{Output: string(out) + "\n"}
}
