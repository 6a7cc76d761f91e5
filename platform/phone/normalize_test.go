package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+54 9 11 4321-5678", "+5491143215678"},
		{"  ", ""},
		{"no-number", "no-number"},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in, "AR"); got != tc.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsReachable(t *testing.T) {
	if !IsReachable("+54 9 11 4321-5678", "") {
		t.Fatalf("expected valid mobile to be reachable")
	}
	if IsReachable("--", "AR") {
		t.Fatalf("expected punctuation to be unreachable")
	}
	if IsReachable("", "AR") {
		t.Fatalf("expected empty to be unreachable")
	}
}
