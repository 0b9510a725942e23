package invoicing

import "testing"

func TestValidateDraft(t *testing.T) {
	valid := Draft{Number: "FTR-2026-0001", TotalMinor: 125000, Currency: "TRY"}

	cases := []struct {
		name     string
		tenantID string
		draft    Draft
		wantErr  bool
	}{
		{"valid", "t1", valid, false},
		{"missing tenant", "", valid, true},
		{"missing number", "t1", Draft{TotalMinor: 100, Currency: "TRY"}, true},
		{"zero amount", "t1", Draft{Number: "F1", TotalMinor: 0, Currency: "TRY"}, true},
		{"negative amount", "t1", Draft{Number: "F1", TotalMinor: -5, Currency: "TRY"}, true},
		{"missing currency", "t1", Draft{Number: "F1", TotalMinor: 100}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateDraft(tc.tenantID, tc.draft)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStatusValuesAreNonEmpty(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusIssued, StatusPaid, StatusVoided} {
		if s == "" {
			t.Fatalf("empty status constant")
		}
	}
}
