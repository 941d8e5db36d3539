package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a billing month. The canonical label is "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t, evaluated in UTC.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod accepts "YYYY-MM" and the legacy "Month YYYY" form
// (English month name, any case).
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if p, ok := parseISOPeriod(s); ok {
		return p, nil
	}
	if p, ok := parseNamedPeriod(s); ok {
		return p, nil
	}
	return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func parseISOPeriod(s string) (Period, bool) {
	if len(s) != 7 || s[4] != '-' {
		return Period{}, false
	}
	year, ok := parseYear(s[:4])
	if !ok {
		return Period{}, false
	}
	month, ok := atoiDigits(s[5:])
	if !ok || month < 1 || month > 12 {
		return Period{}, false
	}
	return Period{Year: year, Month: time.Month(month)}, true
}

func parseNamedPeriod(s string) (Period, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Period{}, false
	}
	year, ok := parseYear(fields[1])
	if !ok {
		return Period{}, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(fields[0], m.String()) {
			return Period{Year: year, Month: m}, true
		}
	}
	return Period{}, false
}

// parseYear accepts exactly four digits in 1000..9999, the same range
// for both label forms.
func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	year, ok := atoiDigits(s)
	if !ok || year < 1000 {
		return 0, false
	}
	return year, true
}

// atoiDigits is strconv.Atoi restricted to ASCII digits, so signs and
// other prefixes are rejected.
func atoiDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// NormalizePeriod parses s and returns its canonical label.
func NormalizePeriod(s string) (string, error) {
	p, err := ParsePeriod(s)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label is the human form, e.g. "December 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Prev returns the month before p.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Day returns the given day of the month, clamped to the month length.
// Days below 1 become the 1st.
func (p Period) Day(day int) time.Time {
	last := time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
