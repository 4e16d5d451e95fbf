package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ArtifactField reads a numeric field from a structured JSON artifact,
// e.g. the mutation score out of a mutation report. Nested fields use a
// dotted path ("thresholds.actual").
type ArtifactField struct {
	Kind  Kind
	Path  string
	Field string
}

func (e ArtifactField) Extract(stage, _ string) Record {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return NotRunRecord(stage, e.Kind)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return NotRunRecord(stage, e.Kind)
	}

	value, ok := lookupField(doc, e.Field)
	if !ok {
		return NotRunRecord(stage, e.Kind)
	}

	return Record{Stage: stage, Kind: e.Kind, Value: value, RawSource: e.Path}
}

func lookupField(doc map[string]any, field string) (float64, bool) {
	var cur any = doc
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur, ok = m[part]
		if !ok {
			return 0, false
		}
	}

	switch v := cur.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Pattern scans captured log text against an ordered regexp list; the first
// expression that matches wins. One capture group reads as the value
// directly; two or more read as passed/failed and reduce to a percentage.
type Pattern struct {
	Kind     Kind
	patterns []*regexp.Regexp
}

// NewPattern compiles the expressions up front so a bad pattern surfaces at
// config time, not per run.
func NewPattern(kind Kind, exprs []string) (Pattern, error) {
	p := Pattern{Kind: kind}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Pattern{}, fmt.Errorf("compiling pattern %q: %w", expr, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

func (e Pattern) Extract(stage, output string) Record {
	for _, re := range e.patterns {
		m := re.FindStringSubmatch(output)
		if m == nil {
			continue
		}

		value, ok := valueFromMatch(m)
		if !ok {
			continue
		}

		return Record{Stage: stage, Kind: e.Kind, Value: value, RawSource: m[0]}
	}

	return NotRunRecord(stage, e.Kind)
}

func valueFromMatch(m []string) (float64, bool) {
	switch len(m) {
	case 0, 1:
		return 0, false
	case 2:
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	default:
		passed, err1 := strconv.ParseFloat(m[1], 64)
		failed, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		total := passed + failed
		if total == 0 {
			return 0, true
		}
		return passed / total * 100, true
	}
}

// Presence reports whether a stage left its expected artifact behind,
// independent of the artifact's content.
type Presence struct {
	Path string
}

func (e Presence) Extract(stage, _ string) Record {
	if _, err := os.Stat(e.Path); err != nil {
		return NotRunRecord(stage, KindPresence)
	}
	return Record{Stage: stage, Kind: KindPresence, Value: 1, RawSource: e.Path}
}
