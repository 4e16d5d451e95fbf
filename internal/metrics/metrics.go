// Package metrics turns stage output and artifacts into normalized records.
// Extraction is total: every extractor returns a well-formed Record and
// signals missing or unparsable input with NotRun instead of an error, so a
// stage that never produced its artifact cannot crash the analysis step.
package metrics

// Kind classifies what a metric value measures.
type Kind string

const (
	KindCount    Kind = "count"    // absolute number, e.g. passing tests
	KindRatio    Kind = "ratio"    // percentage derived from passed/failed
	KindScore    Kind = "score"    // score reported by the tool itself
	KindPresence Kind = "presence" // artifact exists at all
)

// Record is the normalized result of extracting one stage's metric.
// Value and NotRun are distinct on purpose: a genuine zero (a pattern that
// matched "0 passing") gates normally, while NotRun marks input that could
// not be read at all.
type Record struct {
	Stage     string  `json:"stage"`
	Kind      Kind    `json:"kind"`
	Value     float64 `json:"value"`
	NotRun    bool    `json:"not_run"`
	RawSource string  `json:"raw_source,omitempty"`
}

// NotRunRecord is the degraded record used when a stage was never reached or
// its output yielded nothing.
func NotRunRecord(stage string, kind Kind) Record {
	return Record{Stage: stage, Kind: kind, Value: 0, NotRun: true}
}

// Extractor produces a Record from a stage's captured output. Implementations
// must not fail; malformed input degrades to a NotRun record.
type Extractor interface {
	Extract(stage, output string) Record
}
