// Package dateutils provides date parsing for bank export formats.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date format constants for the layouts bank exports actually use.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutEuropean = "02.01.2006"
	DateLayoutUS       = "01/02/2006"
)

// twoDigitLayouts are tried after the four-digit layouts; the parsed year is
// resolved against the pivot below.
var twoDigitLayouts = []string{
	"02.01.06",
	"06-01-02",
	"01/02/06",
}

// fourDigitLayouts are the canonical layouts tried first.
var fourDigitLayouts = []string{
	DateLayoutISO,
	DateLayoutEuropean,
	DateLayoutUS,
	"2006-01-02 15:04:05",
}

// twoDigitPivot resolves 2-digit years: values above it become 19xx,
// values at or below become 20xx.
const twoDigitPivot = 50

// ParseBankDate parses a date string in one of the formats bank exports use:
// DD.MM.YYYY, YYYY-MM-DD or MM/DD/YYYY, each also accepted with a 2-digit
// year. Returns the parsed time and the layout that matched.
func ParseBankDate(dateStr string) (time.Time, string, error) {
	dateStr = CleanDateString(dateStr)
	if dateStr == "" {
		return time.Time{}, "", fmt.Errorf("empty date string")
	}

	for _, layout := range fourDigitLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, layout, nil
		}
	}

	for _, layout := range twoDigitLayouts {
		t, err := time.Parse(layout, dateStr)
		if err != nil {
			continue
		}
		// time.Parse maps 2-digit years to 19xx/20xx with its own pivot of 69;
		// re-resolve against ours.
		yy := t.Year() % 100
		century := 2000
		if yy > twoDigitPivot {
			century = 1900
		}
		t = time.Date(century+yy, t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return t, layout, nil
	}

	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// FormatDate formats a time.Time according to the given layout,
// defaulting to ISO.
func FormatDate(date time.Time, layout string) string {
	if layout == "" {
		layout = DateLayoutISO
	}
	return date.Format(layout)
}

// ToISODate formats a time.Time as YYYY-MM-DD.
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// CleanDateString trims a date string and collapses repeated whitespace.
func CleanDateString(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	re := regexp.MustCompile(`\s+`)
	return re.ReplaceAllString(dateStr, " ")
}

// LooksLikeDate reports whether a value resembles a date in any supported
// layout. Used by the CSV auto-detector to locate date columns.
func LooksLikeDate(value string) bool {
	_, _, err := ParseBankDate(value)
	return err == nil
}
