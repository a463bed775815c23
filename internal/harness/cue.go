package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// scriptSchema closes CUE scripts over the same fields as the YAML form.
const scriptSchema = `
#Response: {
	output: *"" | string
	exit?:  int
}

#Rule: {
	name?:     string
	match:     string & !=""
	responses: [#Response, ...#Response]
}

#Script: {
	name:         string & !=""
	description?: string
	rules?:       [...#Rule]
	default?:     #Response
}
`

// ParseCUEScript compiles a script written in CUE. CUE lets a script
// generate repetitive rules (one per actor, one per table page) with
// comprehensions. The document is unified with a closed schema, so unknown
// fields are rejected just like in YAML.
func ParseCUEScript(data []byte, filename string) (*Script, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(scriptSchema, cue.Filename("script_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("script schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", formatCUEError(err))
	}
	v := schema.LookupPath(cue.ParsePath("#Script")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid script: %w", formatCUEError(err))
	}

	script, err := decodeScript(v)
	if err != nil {
		return nil, err
	}
	if err := script.compile(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return script, nil
}

func decodeScript(v cue.Value) (*Script, error) {
	var (
		s   Script
		err error
	)
	if s.Name, err = v.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		if s.Description, err = d.String(); err != nil {
			return nil, fmt.Errorf("description: %w", err)
		}
	}

	if rules := v.LookupPath(cue.ParsePath("rules")); rules.Exists() {
		iter, err := rules.List()
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		for i := 0; iter.Next(); i++ {
			r, err := decodeRule(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			s.Rules = append(s.Rules, r)
		}
	}

	if d := v.LookupPath(cue.ParsePath("default")); d.Exists() {
		resp, err := decodeResponse(d)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		s.Default = &resp
	}
	return &s, nil
}

func decodeRule(v cue.Value) (Rule, error) {
	var (
		r   Rule
		err error
	)
	if n := v.LookupPath(cue.ParsePath("name")); n.Exists() {
		if r.Name, err = n.String(); err != nil {
			return Rule{}, fmt.Errorf("name: %w", err)
		}
	}
	if r.Match, err = v.LookupPath(cue.ParsePath("match")).String(); err != nil {
		return Rule{}, fmt.Errorf("match: %w", err)
	}

	iter, err := v.LookupPath(cue.ParsePath("responses")).List()
	if err != nil {
		return Rule{}, fmt.Errorf("responses: %w", err)
	}
	for i := 0; iter.Next(); i++ {
		resp, err := decodeResponse(iter.Value())
		if err != nil {
			return Rule{}, fmt.Errorf("responses[%d]: %w", i, err)
		}
		r.Responses = append(r.Responses, resp)
	}
	return r, nil
}

func decodeResponse(v cue.Value) (Response, error) {
	var (
		resp Response
		err  error
	)
	if resp.Output, err = v.LookupPath(cue.ParsePath("output")).String(); err != nil {
		return Response{}, fmt.Errorf("output: %w", err)
	}
	if e := v.LookupPath(cue.ParsePath("exit")); e.Exists() {
		code, err := e.Int64()
		if err != nil {
			return Response{}, fmt.Errorf("exit: %w", err)
		}
		resp.Exit = int(code)
	}
	return resp, nil
}

// formatCUEError keeps the first error and its source position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if pos := errors.Positions(first); len(pos) > 0 {
		return fmt.Errorf("%s: %w", pos[0], first)
	}
	return first
}
