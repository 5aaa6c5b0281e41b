package reader

import (
	"path/filepath"
	"testing"

	"insurityflow/models"
)

func TestLoadReasonCodes(t *testing.T) {
	path := writeTempFile(t, "reason_codes.jsonl", `
{"user_id":"U1","month":"2024-01","top_reasons":[{"feature":"night_pct","shap_value":2453.2761,"rank":1},{"feature":"harsh_brakes","shap_value":-12.5,"rank":2}]}
{"user_id":"U2","month":"2024-01","top_reasons":[]}
`)

	reasons := LoadReasonCodes(path)
	if len(reasons) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(reasons))
	}

	got := reasons[models.ReasonKey{CustomerID: "U1", Period: "2024-01"}]
	want := []string{"night_pct (+2453.276)", "harsh_brakes (-12.500)"}
	if len(got) != len(want) {
		t.Fatalf("U1 reasons: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reason %d: got %q want %q", i, got[i], want[i])
		}
	}

	if empty := reasons[models.ReasonKey{CustomerID: "U2", Period: "2024-01"}]; len(empty) != 0 {
		t.Errorf("U2 must carry an empty list, got %v", empty)
	}
}

func TestLoadReasonCodesSkipsMalformedLines(t *testing.T) {
	path := writeTempFile(t, "reason_codes.jsonl", `
{"user_id":"U1","month":"2024-01","top_reasons":[{"feature":"mileage","shap_value":1.0,"rank":1}]}
{not json at all}
{"month":"2024-01","top_reasons":[]}
{"user_id":"U3","top_reasons":[]}
`)

	reasons := LoadReasonCodes(path)
	if len(reasons) != 1 {
		t.Fatalf("expected only the valid line to load, got %d keys", len(reasons))
	}
	if _, ok := reasons[models.ReasonKey{CustomerID: "U1", Period: "2024-01"}]; !ok {
		t.Errorf("valid line missing from result")
	}
}

func TestLoadReasonCodesMissingFile(t *testing.T) {
	reasons := LoadReasonCodes(filepath.Join(t.TempDir(), "absent.jsonl"))
	if reasons == nil {
		t.Fatalf("missing file must yield an empty map, not nil")
	}
	if len(reasons) != 0 {
		t.Fatalf("expected empty map, got %d keys", len(reasons))
	}
}
