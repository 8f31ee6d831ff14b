package csvparser

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mietwerk/bankrecon/internal/currencyutils"
	"mietwerk/bankrecon/internal/dateutils"
)

// headerScanLimit bounds how many leading lines are scanned for the header
// row. Bank exports often prepend account metadata before the real header.
const headerScanLimit = 10

// DetectedFormat is the auto-detector's proposal for a file's mapping and
// hints. It pre-fills the import dialog for a human to confirm and is never
// committed without confirmation.
type DetectedFormat struct {
	HeaderRow int
	Mapping   ColumnMapping
	Hints     FormatHints
}

// Header vocabularies for German and English bank exports, keyed by logical
// field. Matching is case-insensitive on the trimmed header token.
var (
	dateHeaders = []string{
		"buchungstag", "buchungsdatum", "buchung", "datum", "booking date", "date",
		"transaction date", "posting date",
	}
	valueDateHeaders = []string{
		"valuta", "valutadatum", "wertstellung", "value date",
	}
	amountHeaders = []string{
		"betrag", "umsatz", "betrag (eur)", "amount", "value", "umsatz (eur)",
	}
	nameHeaders = []string{
		"empfänger", "empfaenger", "begünstigter", "beguenstigter",
		"auftraggeber", "zahlungspflichtiger", "auftraggeber/empfänger",
		"beguenstigter/zahlungspflichtiger", "begünstigter/zahlungspflichtiger",
		"name", "counterparty", "payee", "payer",
	}
	ibanHeaders = []string{
		"iban", "kontonummer/iban", "iban auftraggeberkonto", "account iban",
	}
	usageHeaders = []string{
		"verwendungszweck", "vwz", "buchungstext", "usage", "description",
		"reference", "purpose", "memo",
	}
	directionHeaders = []string{
		"soll/haben", "s/h", "soll-haben", "debit/credit", "dr/cr",
	}
	currencyHeaders = []string{
		"währung", "waehrung", "currency", "ccy",
	}
)

// Detect inspects a sample of the file and proposes a header row, delimiter,
// decimal separator and column mapping. It returns an error when no line in
// the scan window looks like a bank export header.
func Detect(sample string) (*DetectedFormat, error) {
	lines := strings.Split(strings.ReplaceAll(sample, "\r\n", "\n"), "\n")

	limit := headerScanLimit
	if len(lines) < limit {
		limit = len(lines)
	}

	for i := 0; i < limit; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		delimiter := detectDelimiter(line)
		headers := splitFields(line, delimiter)
		mapping, score := matchHeaders(headers)
		if mapping.BookingDate == "" || mapping.Amount == "" || score < 2 {
			continue
		}

		hints := FormatHints{
			Delimiter:        delimiter,
			DecimalSeparator: detectDecimalSeparator(lines[i+1:], delimiter),
			SkipRows:         i,
		}
		log.WithFields(logrus.Fields{
			"headerRow": i,
			"delimiter": string(delimiter),
		}).Info("Detected CSV bank export format")
		return &DetectedFormat{HeaderRow: i, Mapping: mapping, Hints: hints}, nil
	}

	return nil, fmt.Errorf("no header row with date and amount columns found in first %d lines", limit)
}

// detectDelimiter takes a majority vote among semicolon, comma and tab.
// Semicolon wins ties: it is the dominant delimiter in German bank exports.
func detectDelimiter(line string) rune {
	best, bestCount := ';', strings.Count(line, ";")
	if c := strings.Count(line, "\t"); c > bestCount {
		best, bestCount = '\t', c
	}
	if c := strings.Count(line, ","); c > bestCount {
		best = ','
	}
	return best
}

// matchHeaders assigns headers to logical fields using the vocabularies.
// The returned score counts how many fields were assigned.
func matchHeaders(headers []string) (ColumnMapping, int) {
	var mapping ColumnMapping
	score := 0

	assign := func(target *string, header string, vocab []string) bool {
		if *target != "" {
			return false
		}
		token := strings.ToLower(strings.TrimSpace(strings.Trim(header, `"`)))
		for _, known := range vocab {
			if token == known {
				*target = strings.Trim(strings.TrimSpace(header), `"`)
				score++
				return true
			}
		}
		return false
	}

	for _, h := range headers {
		// Order matters: "valuta" must not be claimed as the booking date.
		if assign(&mapping.ValueDate, h, valueDateHeaders) {
			continue
		}
		if assign(&mapping.BookingDate, h, dateHeaders) {
			continue
		}
		if assign(&mapping.Amount, h, amountHeaders) {
			continue
		}
		if assign(&mapping.CounterpartyIBAN, h, ibanHeaders) {
			continue
		}
		if assign(&mapping.CounterpartyName, h, nameHeaders) {
			continue
		}
		if assign(&mapping.UsageText, h, usageHeaders) {
			continue
		}
		if assign(&mapping.DirectionIndicator, h, directionHeaders) {
			continue
		}
		assign(&mapping.Currency, h, currencyHeaders)
	}
	return mapping, score
}

// detectDecimalSeparator inspects data rows for comma-decimal vs dot-decimal
// amounts. Rows are tokenized on the detected delimiter; splitting on the
// comma unconditionally would cut "-950,00" in half and lose the vote.
// Comma wins when the evidence is balanced, matching the German exports
// this detector targets.
func detectDecimalSeparator(dataLines []string, delimiter rune) rune {
	commaVotes, dotVotes := 0, 0
	for i, line := range dataLines {
		if i >= 20 {
			break
		}
		for _, tok := range strings.FieldsFunc(line, func(r rune) bool {
			return r == delimiter || r == ';' || r == '\t' || r == '"'
		}) {
			tok = strings.TrimSpace(tok)
			if dateutils.LooksLikeDate(tok) || !currencyutils.LooksLikeAmount(tok) {
				continue
			}
			if idx := strings.LastIndexAny(tok, ",."); idx >= 0 && len(tok)-idx-1 == 2 {
				if tok[idx] == ',' {
					commaVotes++
				} else {
					dotVotes++
				}
			}
		}
	}
	if dotVotes > commaVotes {
		return '.'
	}
	return ','
}
