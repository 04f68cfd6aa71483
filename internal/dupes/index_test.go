package dupes

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Login button broken!", "loginbuttonbroken"},
		{"  LOGIN  button   broken ", "loginbuttonbroken"},
		{"Crash on export (v2.1)", "crashonexportv21"},
		{"???", ""},
	}

	for _, tc := range tests {
		if got := normalizeTitle(tc.in); got != tc.want {
			t.Fatalf("normalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{"identical", "loginbuttonbroken", "loginbuttonbroken", 1, 1},
		{"near match", "loginbuttonbroken", "loginbuttonbroke", 0.9, 1},
		{"unrelated", "loginbuttonbroken", "exportcsvtimeout", 0, 0.4},
		{"one empty", "loginbuttonbroken", "", 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := similarity(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Fatalf("similarity(%q, %q) = %v, want within [%v, %v]", tc.a, tc.b, got, tc.min, tc.max)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	svc := NewService(nil)
	svc.Add(1, "Login button broken")
	svc.Add(2, "Export CSV times out")
	svc.Add(3, "Dashboard chart renders twice")

	match, found := svc.BestMatch("Login button is broken", 0)
	if !found {
		t.Fatal("expected a match")
	}
	if match.ReportID != 1 {
		t.Fatalf("expected report 1, got %d (%q)", match.ReportID, match.Title)
	}
	if match.Similarity < 0.8 {
		t.Fatalf("expected strong similarity, got %v", match.Similarity)
	}
}

func TestBestMatchExcludesSelf(t *testing.T) {
	svc := NewService(nil)
	svc.Add(1, "Login button broken")
	svc.Add(2, "Export CSV times out")

	match, found := svc.BestMatch("Login button broken", 1)
	if found && match.ReportID == 1 {
		t.Fatalf("self report must be excluded, got %+v", match)
	}
}

func TestBestMatchEmptyIndex(t *testing.T) {
	svc := NewService(nil)
	if _, found := svc.BestMatch("Anything at all", 0); found {
		t.Fatal("empty index must not report a match")
	}
	if _, found := svc.BestMatch("???", 0); found {
		t.Fatal("titles normalizing to nothing must not match")
	}
}

func TestBestMatchCached(t *testing.T) {
	svc := NewService(nil)
	svc.Add(1, "Login button broken")

	first, found := svc.BestMatch("Login button is broken", 0)
	if !found {
		t.Fatal("expected a match")
	}
	second, found := svc.BestMatch("Login button is broken", 0)
	if !found || second != first {
		t.Fatalf("cached lookup diverged: %+v vs %+v", second, first)
	}

	// adding a report invalidates the cache
	svc.Add(2, "Login button is broken")
	third, found := svc.BestMatch("Login button is broken", 0)
	if !found || third.ReportID != 2 {
		t.Fatalf("expected the exact match after cache reset, got %+v", third)
	}
}

func TestCount(t *testing.T) {
	svc := NewService(nil)
	if svc.Count() != 0 {
		t.Fatalf("expected empty index, got %d", svc.Count())
	}
	svc.Add(1, "Login button broken")
	svc.Add(2, "???")
	if svc.Count() != 1 {
		t.Fatalf("unindexable titles must be skipped, got %d", svc.Count())
	}
}
