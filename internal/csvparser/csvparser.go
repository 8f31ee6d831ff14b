// Package csvparser parses arbitrary delimited bank exports into raw
// transactions. There is no fixed schema: a column mapping resolves logical
// fields to physical columns by header name, and formatting hints describe
// the bank's delimiter, decimal separator and date format.
package csvparser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"mietwerk/bankrecon/internal/currencyutils"
	"mietwerk/bankrecon/internal/dateutils"
	"mietwerk/bankrecon/internal/models"
	"mietwerk/bankrecon/internal/parsererror"
)

var log = logrus.New()

// SetLogger allows setting a custom logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// ColumnMapping resolves logical transaction fields to physical CSV columns
// by header name. BookingDate and Amount are required; everything else is
// optional. The mapping is the format contract for a bank's export.
type ColumnMapping struct {
	Name               string `yaml:"name,omitempty"`
	BookingDate        string `yaml:"booking_date"`
	Amount             string `yaml:"amount"`
	ValueDate          string `yaml:"value_date,omitempty"`
	CounterpartyName   string `yaml:"counterparty_name,omitempty"`
	CounterpartyIBAN   string `yaml:"counterparty_iban,omitempty"`
	UsageText          string `yaml:"usage_text,omitempty"`
	DirectionIndicator string `yaml:"direction_indicator,omitempty"`
	Currency           string `yaml:"currency,omitempty"`
}

// FormatHints describes the file-level formatting of a bank's CSV export.
type FormatHints struct {
	Delimiter        rune   `yaml:"delimiter"`
	DecimalSeparator rune   `yaml:"decimal_separator"`
	DateFormat       string `yaml:"date_format,omitempty"`
	SkipRows         int    `yaml:"skip_rows,omitempty"`
	Encoding         string `yaml:"encoding,omitempty"`
	DefaultCurrency  string `yaml:"default_currency,omitempty"`
}

// Parser parses delimited text according to one mapping and one set of hints.
type Parser struct {
	mapping ColumnMapping
	hints   FormatHints
}

// New creates a parser for the given mapping and hints. Unset hints fall
// back to semicolon delimiter, comma decimal separator and EUR.
func New(mapping ColumnMapping, hints FormatHints) *Parser {
	if hints.Delimiter == 0 {
		hints.Delimiter = ';'
	}
	if hints.DecimalSeparator == 0 {
		hints.DecimalSeparator = ','
	}
	if hints.DefaultCurrency == "" {
		hints.DefaultCurrency = "EUR"
	}
	return &Parser{mapping: mapping, hints: hints}
}

// columnIndexes holds the resolved physical column index per logical field.
// A value of -1 means the field is not mapped.
type columnIndexes struct {
	bookingDate int
	amount      int
	valueDate   int
	name        int
	iban        int
	usage       int
	direction   int
	currency    int
}

// Parse reads the delimited input and returns the raw transactions plus the
// number of rows skipped as unparseable. Rows whose date or amount cannot be
// parsed are skipped silently: bank exports routinely end in blank or
// summary rows.
func (p *Parser) Parse(r io.Reader) ([]models.RawTransaction, int, error) {
	lines, err := p.readLines(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading CSV input: %w", err)
	}

	if p.hints.SkipRows < len(lines) {
		lines = lines[p.hints.SkipRows:]
	} else {
		lines = nil
	}
	if len(lines) == 0 {
		return nil, 0, &parsererror.InvalidFormatError{
			ExpectedFormat: "delimited text with a header row",
			Msg:            "file contains no rows beyond the configured skip count",
		}
	}

	headers := splitFields(lines[0], p.hints.Delimiter)
	idx, err := p.resolveColumns(headers)
	if err != nil {
		return nil, 0, err
	}

	var (
		transactions []models.RawTransaction
		skipped      int
	)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitFields(line, p.hints.Delimiter)
		tx, ok := p.parseRow(headers, fields, idx)
		if !ok {
			skipped++
			continue
		}
		transactions = append(transactions, tx)
	}

	log.WithFields(logrus.Fields{
		"count":   len(transactions),
		"skipped": skipped,
	}).Info("Parsed CSV bank export")
	return transactions, skipped, nil
}

// resolveColumns matches each mapped column name against the headers,
// case-insensitively. Missing required fields produce a MissingColumnError
// listing what the file actually offers.
func (p *Parser) resolveColumns(headers []string) (columnIndexes, error) {
	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i
			}
		}
		return -1
	}

	idx := columnIndexes{
		bookingDate: find(p.mapping.BookingDate),
		amount:      find(p.mapping.Amount),
		valueDate:   find(p.mapping.ValueDate),
		name:        find(p.mapping.CounterpartyName),
		iban:        find(p.mapping.CounterpartyIBAN),
		usage:       find(p.mapping.UsageText),
		direction:   find(p.mapping.DirectionIndicator),
		currency:    find(p.mapping.Currency),
	}

	if idx.bookingDate < 0 {
		return idx, &parsererror.MissingColumnError{
			Field:            "booking date",
			MappedColumn:     p.mapping.BookingDate,
			AvailableHeaders: headers,
		}
	}
	if idx.amount < 0 {
		return idx, &parsererror.MissingColumnError{
			Field:            "amount",
			MappedColumn:     p.mapping.Amount,
			AvailableHeaders: headers,
		}
	}
	return idx, nil
}

// parseRow converts one data row. Returns ok=false when the row must be
// skipped because its date or amount is unparseable.
func (p *Parser) parseRow(headers, fields []string, idx columnIndexes) (models.RawTransaction, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	bookingDate, err := p.parseDate(get(idx.bookingDate))
	if err != nil {
		return models.RawTransaction{}, false
	}

	amount, err := currencyutils.ParseAmount(get(idx.amount), p.hints.DecimalSeparator)
	if err != nil {
		return models.RawTransaction{}, false
	}

	direction, ok := parseDirectionIndicator(get(idx.direction))
	if ok {
		// Explicit Soll/Haben indicator wins; re-sign the amount to match.
		if direction == models.DirectionDebit {
			amount = amount.Abs().Neg()
		} else {
			amount = amount.Abs()
		}
	} else if amount.IsNegative() {
		direction = models.DirectionDebit
	} else {
		direction = models.DirectionCredit
	}

	tx := models.RawTransaction{
		BookingDate:      bookingDate,
		Amount:           amount,
		Currency:         get(idx.currency),
		Direction:        direction,
		CounterpartyName: get(idx.name),
		CounterpartyIBAN: get(idx.iban),
		UsageText:        get(idx.usage),
		Raw:              rawRowMap(headers, fields),
	}
	if tx.Currency == "" {
		tx.Currency = p.hints.DefaultCurrency
	}
	if v := get(idx.valueDate); v != "" {
		if valueDate, err := p.parseDate(v); err == nil {
			tx.ValueDate = &valueDate
		}
	}
	return tx, true
}

// parseDate tries the explicitly configured date format first, then the
// common bank layouts.
func (p *Parser) parseDate(value string) (time.Time, error) {
	value = dateutils.CleanDateString(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if p.hints.DateFormat != "" {
		if t, err := time.Parse(p.hints.DateFormat, value); err == nil {
			return t, nil
		}
	}
	t, _, err := dateutils.ParseBankDate(value)
	return t, err
}

// parseDirectionIndicator recognizes Soll/Haben style indicator values.
// Returns ok=false when the value is empty or unknown.
func parseDirectionIndicator(value string) (models.Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "h", "haben", "cr", "credit":
		return models.DirectionCredit, true
	case "s", "soll", "dr", "debit":
		return models.DirectionDebit, true
	default:
		return "", false
	}
}

// rawRowMap keeps the full original row keyed by header name for audit.
func rawRowMap(headers, fields []string) map[string]string {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(fields) {
			raw[h] = fields[i]
		} else {
			raw[h] = ""
		}
	}
	return raw
}

// readLines decodes the input per the configured encoding and splits it into
// lines without trailing CR.
func (p *Parser) readLines(r io.Reader) ([]string, error) {
	switch strings.ToLower(p.hints.Encoding) {
	case "", "utf-8", "utf8":
	case "latin1", "iso-8859-1", "iso8859-1":
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	case "windows-1252", "cp1252":
		r = charmap.Windows1252.NewDecoder().Reader(r)
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", p.hints.Encoding)
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// splitFields splits a line on the delimiter with quote awareness: a quoted
// delimiter is not a field break and doubled quotes inside a quoted field
// collapse to one literal quote.
func splitFields(line string, delimiter rune) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == delimiter && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(ch)
		}
	}
	fields = append(fields, field.String())
	return fields
}
