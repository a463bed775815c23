package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/drill/internal/fault"
)

// PageSize is the row limit requested per table page.
const PageSize = 100

// Record is one table row: field name to decoded JSON value. Numbers are
// kept as json.Number so 64-bit ids survive decoding.
type Record map[string]any

// Tables fetches contract tables through an Invoker.
type Tables struct {
	Invoker Invoker
	Command Command
}

type tablePage struct {
	Rows    []Record `json:"rows"`
	More    bool     `json:"more"`
	NextKey string   `json:"next_key"`
}

// Fetch returns every row of contract's table, following pagination.
// A failed command or undecodable output is an InvocationFailure.
func (t Tables) Fetch(ctx context.Context, contract, table string) ([]Record, error) {
	var rows []Record
	lower := ""
	seen := map[string]bool{}

	for {
		cmd := t.Command.GetTable(contract, table, PageSize, lower)
		res := t.Invoker.Invoke(ctx, cmd)
		if res.Interrupted() {
			return nil, fault.Wrap(fault.CodeInterrupted, res.Err, "fetch table %s.%s", contract, table)
		}
		if res.ExitStatus != 0 {
			return nil, &fault.RunError{
				Code:    fault.CodeInvocationFailure,
				Message: fmt.Sprintf("fetch table %s.%s: exit status %d: %s", contract, table, res.ExitStatus, firstLine(res.Output)),
				Err:     res.Err,
			}
		}

		page, err := decodePage(res.Output)
		if err != nil {
			return nil, fault.Wrap(fault.CodeInvocationFailure, err, "fetch table %s.%s", contract, table)
		}
		rows = append(rows, page.Rows...)

		if !page.More || page.NextKey == "" {
			return rows, nil
		}
		if seen[page.NextKey] {
			return nil, fault.New(fault.CodeInvocationFailure,
				"fetch table %s.%s: pagination repeated next_key %q", contract, table, page.NextKey)
		}
		seen[page.NextKey] = true
		lower = page.NextKey
	}
}

func decodePage(output string) (tablePage, error) {
	// The CLI may print warnings before the JSON document.
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return tablePage{}, fmt.Errorf("no JSON object in output: %q", firstLine(output))
	}

	dec := json.NewDecoder(strings.NewReader(output[start:]))
	dec.UseNumber()
	var page tablePage
	if err := dec.Decode(&page); err != nil {
		return tablePage{}, fmt.Errorf("decode table page: %w", err)
	}
	return page, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Has reports whether field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Text returns field as a string. Numbers are formatted; other types fail.
func (r Record) Text(field string) (string, error) {
	switch v := r[field].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case nil:
		return "", fmt.Errorf("field %q missing", field)
	default:
		return "", fmt.Errorf("field %q: expected string, got %T", field, v)
	}
}

// Uint returns field as an unsigned integer. Numeric strings are accepted
// because 64-bit table keys are often emitted quoted.
func (r Record) Uint(field string) (uint64, error) {
	var s string
	switch v := r[field].(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	case nil:
		return 0, fmt.Errorf("field %q missing", field)
	default:
		return 0, fmt.Errorf("field %q: expected integer, got %T", field, v)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return n, nil
}

// Int returns field as an int.
func (r Record) Int(field string) (int, error) {
	n, err := r.Uint(field)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Bool returns field as a boolean. Contract tables store flags as 0/1.
func (r Record) Bool(field string) (bool, error) {
	switch v := r[field].(type) {
	case bool:
		return v, nil
	case json.Number:
		return v.String() != "0", nil
	case string:
		return strconv.ParseBool(v)
	case nil:
		return false, fmt.Errorf("field %q missing", field)
	default:
		return false, fmt.Errorf("field %q: expected flag, got %T", field, v)
	}
}

// Members returns the ordered member identifiers of a list field, stripping
// any weight attached to each entry. Entries may be bare strings,
// {"key":name,"value":w}, {"first":name,"second":w}, {"name":name,...} or
// [name, w].
func (r Record) Members(field string) ([]string, error) {
	raw, ok := r[field]
	if !ok {
		return nil, fmt.Errorf("field %q missing", field)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q: expected list, got %T", field, raw)
	}

	members := make([]string, 0, len(list))
	for i, entry := range list {
		name, err := memberName(entry)
		if err != nil {
			return nil, fmt.Errorf("field %q[%d]: %w", field, i, err)
		}
		members = append(members, name)
	}
	return members, nil
}

func memberName(entry any) (string, error) {
	switch v := entry.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) == 0 {
			return "", fmt.Errorf("empty pair")
		}
		return memberName(v[0])
	case map[string]any:
		for _, k := range []string{"key", "first", "name", "member"} {
			if inner, ok := v[k]; ok {
				return memberName(inner)
			}
		}
		return "", fmt.Errorf("no member key in %v", v)
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported member entry %T", entry)
	}
}
