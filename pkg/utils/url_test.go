package utils

import (
	"net/url"
	"testing"
)

func TestCanonicalURL(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Jobs.Example.COM:443/job/1#apply": "https://jobs.example.com/job/1",
		"http://example.com:80":                    "http://example.com/",
		"  https://example.com/a?id=7  ":           "https://example.com/a?id=7",
	}
	for in, want := range cases {
		got, err := CanonicalURL(in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFingerprintIgnoresFragmentAndCase(t *testing.T) {
	a := Fingerprint("https://Example.com/job/42#top")
	b := Fingerprint("https://example.com/job/42")
	if a != b {
		t.Fatalf("expected equal fingerprints, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex fingerprint, got %d chars", len(a))
	}
	if a == Fingerprint("https://example.com/job/43") {
		t.Fatal("different listings must not share a fingerprint")
	}
}

func TestHasExtension(t *testing.T) {
	exts := []string{"pdf", ".DOCX"}
	if !HasExtension("https://example.com/files/posting.PDF?dl=1", exts) {
		t.Fatal("expected pdf link to match")
	}
	if !HasExtension("https://example.com/a/b.docx", exts) {
		t.Fatal("expected docx link to match")
	}
	if HasExtension("https://example.com/job/12", exts) {
		t.Fatal("expected extension-less link not to match")
	}
}

func TestToAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/region/oslo?page=2")
	got, err := ToAbsoluteURL(base, "/job/9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/job/9" {
		t.Fatalf("unexpected absolute url: %s", got)
	}
}
