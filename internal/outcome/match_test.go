package outcome

import (
	"testing"

	"crimson-casino/internal/store"
)

func TestParseDelimitedDescriptor(t *testing.T) {
	d := Parse("Red#B : Over 21(32)#A : Under 21(10)")
	if d.Winner != "Red" {
		t.Fatalf("expected winner Red, got %q", d.Winner)
	}
	if len(d.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(d.Attributes))
	}
	if d.Attributes[0].Name != "B" || d.Attributes[0].Result != "Over 21(32)" {
		t.Fatalf("unexpected first attribute: %+v", d.Attributes[0])
	}
	if d.Attributes[1].Name != "A" || d.Attributes[1].Result != "Under 21(10)" {
		t.Fatalf("unexpected second attribute: %+v", d.Attributes[1])
	}
}

func TestParseToleratesMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"only delimiters", "###"},
		{"blank segments", "  #  #  "},
		{"missing pair delimiter", "Red#justatoken"},
		{"trailing junk", "Red#B : Over#"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Parse(tc.raw)
			// No panic and never a spurious match.
			if d.Matches("somethingelse") {
				t.Fatalf("%q should not match arbitrary selection", tc.raw)
			}
		})
	}
	if d := Parse(""); !d.Empty() {
		t.Fatal("empty input should parse to empty descriptor")
	}
}

func TestBackAndLayAgainstCompoundDescriptor(t *testing.T) {
	d := Parse("Red#B : Over 21(32)#A : Under 21(10)")

	cases := []struct {
		selection string
		side      store.BetSide
		win       bool
	}{
		{"Red", store.SideBack, true},     // primary winner
		{"red", store.SideBack, true},     // case-folded
		{"  Red  ", store.SideBack, true}, // trimmed
		{"B", store.SideBack, true},       // secondary attribute name
		{"Over 21(32)", store.SideBack, true},
		{"Over 21", store.SideBack, true}, // substring fallback
		{"Black", store.SideBack, false},
		{"Red", store.SideLay, false}, // lay loses when outcome occurs
		{"Black", store.SideLay, true},
		{"", store.SideBack, false},
	}
	for _, tc := range cases {
		if got := Wins(d, tc.selection, tc.side); got != tc.win {
			t.Errorf("Wins(%q, %s) = %v, want %v", tc.selection, tc.side, got, tc.win)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	d := Descriptor{
		Winner: "gold",
		Attributes: []Attribute{
			{Name: "sector", Result: "0"},
			{Name: "parity", Result: "even"},
		},
	}
	back := Parse(d.Encode())
	if back.Winner != "gold" || len(back.Attributes) != 2 {
		t.Fatalf("round trip lost data: %+v", back)
	}
	if back.Attributes[0].Name != "sector" || back.Attributes[0].Result != "0" {
		t.Fatalf("unexpected attribute after round trip: %+v", back.Attributes[0])
	}
}
