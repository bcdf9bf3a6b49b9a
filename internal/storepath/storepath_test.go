package storepath_test

import (
	"strings"
	"testing"

	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

func validHash() string {
	return strings.Repeat("a", 32)
}

func TestNewRejectsNonStorePaths(t *testing.T) {
	cases := []string{
		"",
		"/tmp/foo",
		"/nix/store/tooshort-foo",
		"/nix/storewrong/" + validHash() + "-foo",
	}
	for _, c := range cases {
		if _, err := storepath.New(c); err == nil {
			t.Errorf("expected New(%q) to fail", c)
		}
	}
}

func TestNewAcceptsWellFormedPath(t *testing.T) {
	p := "/nix/store/" + validHash() + "-hello-2.12.1"
	sp, err := storepath.New(p)
	if err != nil {
		t.Fatalf("New(%q): %v", p, err)
	}
	if sp.String() != p {
		t.Fatalf("String() = %q, want %q", sp.String(), p)
	}
}

func TestNameAndVersionSplitsOnFirstDigitAfterDash(t *testing.T) {
	cases := []struct {
		suffix  string
		name    string
		version string
	}{
		{"hello-2.12.1", "hello", "2.12.1"},
		{"hello-world-1.0", "hello-world", "1.0"},
		{"glibc-2.38-44", "glibc", "2.38-44"},
		{"openssl", "openssl", ""},
		{"a-b-c", "a-b-c", ""},
		{"foo-1", "foo", "1"},
	}

	for _, c := range cases {
		p := "/nix/store/" + validHash() + "-" + c.suffix
		sp, err := storepath.New(p)
		if err != nil {
			t.Fatalf("New(%q): %v", p, err)
		}
		name, version, err := sp.NameAndVersion()
		if err != nil {
			t.Fatalf("NameAndVersion(%q): %v", c.suffix, err)
		}
		if name != c.name || version != c.version {
			t.Errorf("NameAndVersion(%q) = (%q, %q), want (%q, %q)", c.suffix, name, version, c.name, c.version)
		}
	}
}
