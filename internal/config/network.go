package config

import "strconv"

// Variant selects the backend deployment a run targets.
type Variant int

const (
	VariantLocal Variant = iota
	VariantStaging
	VariantMainnet
)

// Network names the contracts and token of one deployment.
type Network struct {
	Name   string
	Game   string
	Token  string
	Gov    string
	Symbol string
}

var networks = map[Variant]Network{
	VariantLocal:   {Name: "local", Game: "playgame", Token: "playtoken", Gov: "playgov", Symbol: "PLAY"},
	VariantStaging: {Name: "staging", Game: "stagegame", Token: "stagetoken", Gov: "stagegov", Symbol: "STG"},
	VariantMainnet: {Name: "mainnet", Game: "leaguegame", Token: "leaguetoken", Gov: "leaguegov", Symbol: "LGE"},
}

// ParseVariant parses the 0/1/2 selector.
func ParseVariant(s string) (Variant, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid("variant %q: want 0, 1 or 2", s)
	}
	v := Variant(n)
	if _, ok := networks[v]; !ok {
		return 0, invalid("variant %d: want 0, 1 or 2", n)
	}
	return v, nil
}

// String returns the network name.
func (v Variant) String() string {
	if n, ok := networks[v]; ok {
		return n.Name
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}
