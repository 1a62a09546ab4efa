package disease

import (
	"bytes"
	"go/format"
	"os"
	"testing"
)

func TestEndStatesAreExactlyTheTerminalOutcomes(t *testing.T) {
	want := map[Status]bool{
		Recovered:       true,
		Saved:           true,
		DiedInCare:      true,
		DiedWithoutCare: true,
	}
	for _, s := range All {
		if s.IsEndState() != want[s] {
			t.Fatalf("%s: IsEndState=%v, want %v", s, s.IsEndState(), want[s])
		}
	}
}

func TestOnlyDeathsAreDeceased(t *testing.T) {
	for _, s := range All {
		want := s == DiedInCare || s == DiedWithoutCare
		if s.IsDeceased() != want {
			t.Fatalf("%s: IsDeceased=%v, want %v", s, s.IsDeceased(), want)
		}
	}
}

func TestInfectionFlags(t *testing.T) {
	if !Healthy.CanBeInfected() || Healthy.CanInfect() {
		t.Fatal("healthy should be infectable and not infectious")
	}
	if !Sick.CanInfect() || Sick.CanBeInfected() {
		t.Fatal("sick should be infectious and not infectable")
	}
	if !Incubating.CanInfect() {
		t.Fatal("incubating should be infectious")
	}
	for _, s := range All {
		if s.IsEndState() && (s.CanInfect() || s.CanBeInfected()) {
			t.Fatalf("%s: end states take no part in transmission", s)
		}
	}
}

func TestKeysRoundTrip(t *testing.T) {
	for _, s := range All {
		got, ok := ParseKey(s.Key())
		if !ok || got != s {
			t.Fatalf("ParseKey(%q) = %v, %v", s.Key(), got, ok)
		}
	}
	if _, ok := ParseKey("zombie"); ok {
		t.Fatal("unexpected key accepted")
	}
	if Status(99).String() != "Unknown" || Status(99).CanInfect() {
		t.Fatal("out-of-range status should be inert")
	}
}

func TestTextEncoding(t *testing.T) {
	var st Status
	if err := st.UnmarshalText([]byte("died_in_care")); err != nil || st != DiedInCare {
		t.Fatalf("UnmarshalText = %v, %v", st, err)
	}
	if err := st.UnmarshalText([]byte("zombie")); err == nil {
		t.Fatal("expected error for unknown key")
	}
	b, _ := Saved.MarshalText()
	if string(b) != "saved" {
		t.Fatalf("MarshalText = %q", b)
	}
}

func TestSourceIsFormatted(t *testing.T) {
	src, err := os.ReadFile("status.go")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	formatted, err := format.Source(src)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !bytes.Equal(src, formatted) {
		t.Fatal("status.go is not gofmt-clean")
	}
}
