package identity

import "testing"

func TestRolesScanner(t *testing.T) {
	cases := []struct {
		in   any
		want []string
	}{
		{nil, nil},
		{"{}", nil},
		{"{platform_admin}", []string{"platform_admin"}},
		{"{platform_admin,platform_support}", []string{"platform_admin", "platform_support"}},
		{[]byte("{platform_admin}"), []string{"platform_admin"}},
	}
	for _, tc := range cases {
		var r rolesScanner
		if err := r.Scan(tc.in); err != nil {
			t.Fatalf("scan %v: %v", tc.in, err)
		}
		if len(r) != len(tc.want) {
			t.Fatalf("scan %v: got %v, want %v", tc.in, r, tc.want)
		}
		for i := range r {
			if r[i] != tc.want[i] {
				t.Fatalf("scan %v: got %v, want %v", tc.in, r, tc.want)
			}
		}
	}
}

func TestRolesScanner_RejectsUnsupportedType(t *testing.T) {
	var r rolesScanner
	if err := r.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported source type")
	}
}
