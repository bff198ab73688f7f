package decrypt_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cyberpolicy/cracklab/internal/decrypt"
)

const testRoster = `alice@example.edu,g-alice,8,26
bob@example.edu, g-bob ,10,36
`

func TestParseRoster(t *testing.T) {
	roster, err := decrypt.ParseRoster(strings.NewReader(testRoster))
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	bob := roster["g-bob"]
	if bob.Email != "bob@example.edu" || bob.KeyLen != "10" || bob.AlphabetSize != "36" {
		t.Errorf("unexpected entry: %+v", bob)
	}
}

func TestParseRoster_malformed(t *testing.T) {
	for _, in := range []string{"a,b,c\n", "a@x,,1,2\n"} {
		if _, err := decrypt.ParseRoster(strings.NewReader(in)); err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
}

func TestTally(t *testing.T) {
	roster, _ := decrypt.ParseRoster(strings.NewReader(testRoster))
	reports := []*decrypt.Report{
		{GUID: "g-bob"}, {GUID: "g-alice"}, {GUID: "g-bob"}, {GUID: "stray"},
	}

	got := decrypt.Tally(reports, roster)
	want := []decrypt.Count{
		{Email: "?", Reports: 1},
		{Email: "alice@example.edu", Reports: 1},
		{Email: "bob@example.edu", Reports: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestTally_noRoster(t *testing.T) {
	got := decrypt.Tally([]*decrypt.Report{{GUID: "a"}, {GUID: "b"}}, nil)
	want := []decrypt.Count{{Email: decrypt.UnknownEmail, Reports: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got := decrypt.Tally(nil, nil); len(got) != 0 {
		t.Errorf("expected empty tally, got %+v", got)
	}
}

func TestTally_storedEmailFallback(t *testing.T) {
	roster, _ := decrypt.ParseRoster(strings.NewReader(testRoster))
	reports := []*decrypt.Report{
		{GUID: "g-legacy", Email: "carol@example.edu"},
		{GUID: "g-bob", Email: "stale@example.edu"},
		{GUID: "stray"},
	}

	got := decrypt.Tally(reports, roster)
	want := []decrypt.Count{
		{Email: "?", Reports: 1},
		{Email: "bob@example.edu", Reports: 1},
		{Email: "carol@example.edu", Reports: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	noRoster := decrypt.Tally(reports, nil)
	if len(noRoster) != 3 || noRoster[2].Email != "stale@example.edu" {
		t.Errorf("without a roster the stored email must be used: %+v", noRoster)
	}
}
