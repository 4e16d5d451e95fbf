package metrics

import (
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArtifactField(t *testing.T) {
	path := writeArtifact(t, `{"score": 95.16, "killed": 59}`)
	e := ArtifactField{Kind: KindScore, Path: path, Field: "score"}

	rec := e.Extract("mutation", "")
	if rec.NotRun {
		t.Fatal("unexpected not-run record")
	}
	if rec.Value != 95.16 {
		t.Errorf("value = %v, want 95.16", rec.Value)
	}
	if rec.RawSource != path {
		t.Errorf("raw source = %q, want artifact path", rec.RawSource)
	}
}

func TestArtifactField_NestedField(t *testing.T) {
	path := writeArtifact(t, `{"metrics": {"mutationScore": 80}}`)
	e := ArtifactField{Kind: KindScore, Path: path, Field: "metrics.mutationScore"}

	rec := e.Extract("mutation", "")
	if rec.NotRun || rec.Value != 80 {
		t.Errorf("record = %+v, want value 80", rec)
	}
}

func TestArtifactField_MissingFile(t *testing.T) {
	e := ArtifactField{Kind: KindScore, Path: filepath.Join(t.TempDir(), "absent.json"), Field: "score"}

	rec := e.Extract("mutation", "")
	if !rec.NotRun || rec.Value != 0 {
		t.Errorf("record = %+v, want {Value: 0, NotRun: true}", rec)
	}
}

func TestArtifactField_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"invalid json", `{score:`, "score"},
		{"missing field", `{"other": 1}`, "score"},
		{"non-numeric field", `{"score": {"nested": true}}`, "score"},
		{"field through scalar", `{"score": 5}`, "score.deeper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, tt.content)
			e := ArtifactField{Kind: KindScore, Path: path, Field: tt.field}

			rec := e.Extract("mutation", "")
			if !rec.NotRun {
				t.Errorf("record = %+v, want not-run", rec)
			}
		})
	}
}

func mustPattern(t *testing.T, kind Kind, exprs ...string) Pattern {
	t.Helper()
	p, err := NewPattern(kind, exprs)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPattern_Count(t *testing.T) {
	p := mustPattern(t, KindCount, `(\d+) passing`)

	rec := p.Extract("contract", "some noise\n  14 passing (2s)\n")
	if rec.NotRun {
		t.Fatal("unexpected not-run record")
	}
	if rec.Value != 14 {
		t.Errorf("value = %v, want 14", rec.Value)
	}
	if rec.RawSource != "14 passing" {
		t.Errorf("raw source = %q, want matched text", rec.RawSource)
	}
}

func TestPattern_FirstMatchWins(t *testing.T) {
	p := mustPattern(t, KindCount,
		`Tests: (\d+) passed`,
		`(\d+) passing`,
	)

	rec := p.Extract("unit", "Tests: 8 passed, 9 total\n12 passing\n")
	if rec.Value != 8 {
		t.Errorf("value = %v, want 8 (first pattern)", rec.Value)
	}
}

func TestPattern_Ratio(t *testing.T) {
	p := mustPattern(t, KindRatio, `scenarios: \d+ passed: (\d+) failed: (\d+)`)

	rec := p.Extract("ui", "scenarios: 10 passed: 9 failed: 1\n")
	if rec.NotRun {
		t.Fatal("unexpected not-run record")
	}
	if rec.Value != 90 {
		t.Errorf("value = %v, want 90", rec.Value)
	}
}

func TestPattern_ZeroIsAValue(t *testing.T) {
	p := mustPattern(t, KindCount, `(\d+) passing`)

	rec := p.Extract("unit", "0 passing\n")
	if rec.NotRun {
		t.Error("zero matches must not be flagged not-run")
	}
	if rec.Value != 0 {
		t.Errorf("value = %v, want 0", rec.Value)
	}
}

func TestPattern_NoMatch(t *testing.T) {
	p := mustPattern(t, KindCount, `(\d+) passing`)

	rec := p.Extract("unit", "nothing useful here\n")
	if !rec.NotRun || rec.Value != 0 {
		t.Errorf("record = %+v, want {Value: 0, NotRun: true}", rec)
	}
}

func TestNewPattern_BadExpr(t *testing.T) {
	if _, err := NewPattern(KindCount, []string{`(\d+ passing`}); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

func TestPresence(t *testing.T) {
	path := writeArtifact(t, "<html></html>")
	e := Presence{Path: path}

	rec := e.Extract("ui", "")
	if rec.NotRun || rec.Value != 1 {
		t.Errorf("record = %+v, want value 1", rec)
	}
}

func TestPresence_Absent(t *testing.T) {
	e := Presence{Path: filepath.Join(t.TempDir(), "missing.html")}

	rec := e.Extract("ui", "")
	if !rec.NotRun || rec.Value != 0 {
		t.Errorf("record = %+v, want {Value: 0, NotRun: true}", rec)
	}
}
