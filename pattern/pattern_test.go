package pattern

import "testing"

func TestGlobify(t *testing.T) {
	got := Globify("/in/{platform}_{start_time:%Y%m%d%H%M}.dat")
	want := "/in/*_*.dat"
	if got != want {
		t.Errorf("Globify = %q, want %q", got, want)
	}
}

func TestParseDatetimeField(t *testing.T) {
	tmpl := "/in/{platform}_{start_time:%Y%m%d%H%M}.dat"
	fields, ok := Parse(tmpl, "/in/NOAA19_202504031200.dat")
	if !ok {
		t.Fatal("expected match")
	}
	if fields["platform"] != "NOAA19" {
		t.Errorf("platform = %v", fields["platform"])
	}
	if fields["start_time"] != "202504031200" {
		t.Errorf("start_time = %v", fields["start_time"])
	}
}

func TestParseNoMatch(t *testing.T) {
	if _, ok := Parse("/in/A-{id}.dat", "/in/B-1.dat"); ok {
		t.Error("expected no match")
	}
}

func TestComposeRoundTrip(t *testing.T) {
	mda := map[string]any{"platform": "NOAA19", "orbit": 123}
	got, err := Compose("/out/{platform}/{orbit:05d}.dat", mda)
	if err != nil {
		t.Fatal(err)
	}
	want := "/out/NOAA19/00123.dat"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
}

func TestComposeMissingField(t *testing.T) {
	if _, err := Compose("/out/{missing}.dat", map[string]any{}); err == nil {
		t.Error("expected error for missing field")
	}
}
