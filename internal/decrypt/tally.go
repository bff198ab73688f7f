package decrypt

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// UnknownEmail labels reports whose guid is not on the roster.
const UnknownEmail = "?"

// RosterEntry is one row of the provisioning roster.
type RosterEntry struct {
	Email        string `json:"email"`
	GUID         string `json:"guid"`
	KeyLen       string `json:"keylen"`
	AlphabetSize string `json:"alphabet_size"`
}

// Roster maps guid to the student it was issued to.
type Roster map[string]RosterEntry

// ParseRoster reads headerless email,guid,keylen,alphabet_size rows.
func ParseRoster(r io.Reader) (Roster, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	roster := make(Roster)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return roster, nil
		}
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}
		e := RosterEntry{
			Email:        strings.TrimSpace(row[0]),
			GUID:         strings.TrimSpace(row[1]),
			KeyLen:       strings.TrimSpace(row[2]),
			AlphabetSize: strings.TrimSpace(row[3]),
		}
		if e.GUID == "" {
			return nil, fmt.Errorf("roster line %d: empty guid", line)
		}
		roster[e.GUID] = e
	}
}

// Count is the number of reports attributed to one email.
type Count struct {
	Email   string `json:"email"`
	Reports int    `json:"reports"`
}

// Tally counts reports per email, sorted by email. The roster entry for a
// guid wins over the email stored on the report; reports with neither are
// counted under UnknownEmail.
func Tally(reports []*Report, roster Roster) []Count {
	hist := make(map[string]int)
	for _, r := range reports {
		email := UnknownEmail
		if e, ok := roster[r.GUID]; ok {
			email = e.Email
		} else if r.Email != "" {
			email = r.Email
		}
		hist[email]++
	}

	out := make([]Count, 0, len(hist))
	for email, n := range hist {
		out = append(out, Count{Email: email, Reports: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
