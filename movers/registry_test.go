package movers

import "testing"

func TestSchemeDefaultsToFile(t *testing.T) {
	cases := map[string]string{
		"/out/a.dat":         "file",
		"file:///out/a.dat":  "file",
		"ftp://h/out/a.dat":  "ftp",
		"s3://bucket/a.dat":  "s3",
		"sftp://h/out/":      "sftp",
	}
	for in, want := range cases {
		if got := Scheme(in); got != want {
			t.Errorf("Scheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDestPathTrailingSlashAppendsBasename(t *testing.T) {
	if got := DestPath("/out/", "/in/H-1.dat"); got != "/out/H-1.dat" {
		t.Errorf("DestPath = %q", got)
	}
	if got := DestPath("/out/renamed.dat", "/in/H-1.dat"); got != "/out/renamed.dat" {
		t.Errorf("DestPath = %q", got)
	}
}

func TestLookupUnknownScheme(t *testing.T) {
	if _, err := Lookup("gopher"); err == nil {
		t.Fatal("expected error for unregistered scheme")
	}
}

func TestLookupRegisteredSchemes(t *testing.T) {
	for _, s := range []string{"file", "ftp", "sftp", "scp", "s3", "azure"} {
		if _, err := Lookup(s); err != nil {
			t.Errorf("Lookup(%q): %v", s, err)
		}
	}
}
