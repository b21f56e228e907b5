package urlutil

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestSplitUserinfo_StripsCredentials(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		scheme := rapid.SampledFrom([]string{"http", "https"}).Draw(rt, "scheme")
		host := fmt.Sprintf(
			"%s.%s:%d",
			rapid.StringMatching(`[a-z]{3,12}`).Draw(rt, "host"),
			rapid.StringMatching(`[a-z]{2,8}`).Draw(rt, "tld"),
			rapid.IntRange(1024, 9999).Draw(rt, "port"),
		)
		db := rapid.StringMatching(`[a-z][a-z0-9_]{0,12}`).Draw(rt, "db")
		user := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "user")
		pass := rapid.StringMatching(`[A-Za-z0-9]{1,12}`).Draw(rt, "pass")
		trailing := rapid.SampledFrom([]string{"", "/", "//"}).Draw(rt, "trailing")

		raw := fmt.Sprintf("%s://%s:%s@%s/%s%s", scheme, user, pass, host, db, trailing)
		base, info, err := SplitUserinfo(raw)
		if err != nil {
			rt.Fatalf("SplitUserinfo(%q): %v", raw, err)
		}
		if want := fmt.Sprintf("%s://%s/%s", scheme, host, db); base != want {
			rt.Fatalf("base mismatch: got=%s want=%s", base, want)
		}
		if info == nil || info.Username() != user {
			rt.Fatalf("expected user %q, got %v", user, info)
		}
		if got, _ := info.Password(); got != pass {
			rt.Fatalf("password mismatch: got=%q want=%q", got, pass)
		}
	})
}

func TestSplitUserinfo_WithoutCredentials(t *testing.T) {
	base, info, err := SplitUserinfo("  http://localhost:5984/hypothesis/ ")
	if err != nil {
		t.Fatalf("SplitUserinfo failed: %v", err)
	}
	if base != "http://localhost:5984/hypothesis" {
		t.Fatalf("unexpected base: %s", base)
	}
	if info != nil {
		t.Fatalf("expected no credentials, got %v", info)
	}
}

func TestSplitUserinfo_RejectsOtherSchemes(t *testing.T) {
	for _, raw := range []string{"", "localhost:5984/db", "ftp://host/db", "couchdb://host/db"} {
		if _, _, err := SplitUserinfo(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if IsHTTP(raw) {
			t.Fatalf("IsHTTP(%q) should be false", raw)
		}
	}
}

func TestBuildAbsolute_EscapesSegments(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := "http://localhost:5984/" + rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "db")
		segments := rapid.SliceOfN(rapid.String(), 1, 4).Draw(rt, "segments")

		got := BuildAbsolute(base+"/", segments...)
		rest, ok := strings.CutPrefix(got, base+"/")
		if !ok {
			rt.Fatalf("missing base prefix: %s", got)
		}
		parts := strings.Split(rest, "/")
		if len(parts) != len(segments) {
			rt.Fatalf("segment count mismatch: got=%d want=%d (%s)", len(parts), len(segments), got)
		}
		for i, p := range parts {
			back, err := url.PathUnescape(p)
			if err != nil {
				rt.Fatalf("unescape %q: %v", p, err)
			}
			if back != segments[i] {
				rt.Fatalf("segment %d mismatch: got=%q want=%q", i, back, segments[i])
			}
		}
	})
}

func TestBuildAbsolute_NoSegments(t *testing.T) {
	if got := BuildAbsolute("http://localhost:5984/db/"); got != "http://localhost:5984/db" {
		t.Fatalf("unexpected url: %s", got)
	}
}
