// Package camtparser parses ISO 20022 CAMT.053 bank statements into raw
// transactions. Batch entries are split into their constituent transaction
// details so each real-world payment becomes its own record.
package camtparser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/xmlpath.v2"

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

// endToEndPlaceholder is the ISO placeholder banks emit when no end-to-end
// reference was provided. It carries no information and is dropped.
const endToEndPlaceholder = "NOTPROVIDED"

// Parser parses CAMT.053 documents.
type Parser struct{}

// New creates a CAMT.053 parser.
func New() *Parser {
	return &Parser{}
}

// ValidateFormat checks that the input is well-formed XML containing the
// CAMT.053 Document/BkToCstmrStmt structure with at least one entry.
// Anything else is rejected before parsing begins.
func ValidateFormat(data []byte) (bool, error) {
	root, err := xmlpath.Parse(bytes.NewReader(data))
	if err != nil {
		return false, nil
	}
	stmtPath := xmlpath.MustCompile("//BkToCstmrStmt/Stmt")
	if iter := stmtPath.Iter(root); !iter.Next() {
		return false, nil
	}
	ntryPath := xmlpath.MustCompile("//Ntry")
	if iter := ntryPath.Iter(root); !iter.Next() {
		return false, nil
	}
	return true, nil
}

// Parse reads a CAMT.053 document and returns the raw transactions plus the
// number of entries skipped for lack of a usable booking date.
func (p *Parser) Parse(r io.Reader) ([]models.RawTransaction, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading CAMT.053 input: %w", err)
	}

	valid, err := ValidateFormat(data)
	if err != nil {
		return nil, 0, err
	}
	if !valid {
		return nil, 0, &parsererror.InvalidFormatError{
			ExpectedFormat: "ISO 20022 CAMT.053 XML (Document/BkToCstmrStmt with Ntry elements)",
			Msg:            "document is not a CAMT.053 statement",
		}
	}

	var document models.CAMT053Document
	if err := xml.Unmarshal(data, &document); err != nil {
		return nil, 0, &parsererror.ParseError{
			Parser: "CAMT053",
			Field:  "XML document",
			Value:  "",
			Err:    err,
		}
	}

	var (
		transactions []models.RawTransaction
		skipped      int
	)
	for _, stmt := range document.BkToCstmrStmt.Stmt {
		for _, entry := range stmt.Ntry {
			entryTxs, ok := p.parseEntry(&stmt, &entry)
			if !ok {
				skipped++
				continue
			}
			transactions = append(transactions, entryTxs...)
		}
	}

	log.WithFields(logrus.Fields{
		"count":   len(transactions),
		"skipped": skipped,
	}).Info("Parsed CAMT.053 statement")
	return transactions, skipped, nil
}

// parseEntry converts one statement entry into one raw transaction per
// transaction detail, or a single transaction when the entry carries no
// details. Returns ok=false when the entry has no usable booking date.
func (p *Parser) parseEntry(stmt *models.CAMT053Stmt, entry *models.CAMT053Ntry) ([]models.RawTransaction, bool) {
	bookingDate, err := parseCAMTDate(entry.BookgDt)
	if err != nil {
		return nil, false
	}

	direction := parseDirection(entry.CdtDbtInd)
	entryAmount, err := signedAmount(entry.Amt.Text, direction)
	if err != nil {
		return nil, false
	}

	currency := entry.Amt.Ccy
	if currency == "" {
		currency = stmt.Acct.Ccy
	}

	var valueDate *time.Time
	if vd, err := parseCAMTDate(entry.ValDt); err == nil {
		valueDate = &vd
	}

	base := models.RawTransaction{
		BookingDate:   bookingDate,
		ValueDate:     valueDate,
		Amount:        entryAmount,
		Currency:      currency,
		Direction:     direction,
		BankReference: strings.TrimSpace(entry.AcctSvcrRef),
		Raw: map[string]string{
			"ntry_ref":      entry.NtryRef,
			"acct_svcr_ref": entry.AcctSvcrRef,
			"cdt_dbt_ind":   entry.CdtDbtInd,
			"sts":           entry.Sts,
			"amt":           entry.Amt.Text,
		},
	}

	details := entry.NtryDtls.TxDtls
	if len(details) == 0 {
		tx := base
		tx.UsageText = strings.TrimSpace(entry.AddtlNtryInf)
		return []models.RawTransaction{tx}, true
	}

	transactions := make([]models.RawTransaction, 0, len(details))
	for i := range details {
		detail := &details[i]
		tx := base

		// A batch entry's details each carry their own sub-amount.
		if strings.TrimSpace(detail.Amt.Text) != "" {
			if amount, err := signedAmount(detail.Amt.Text, direction); err == nil {
				tx.Amount = amount
				if detail.Amt.Ccy != "" {
					tx.Currency = detail.Amt.Ccy
				}
			}
		}

		tx.CounterpartyName, tx.CounterpartyIBAN = counterparty(&detail.RltdPties, direction)
		if e2e := strings.TrimSpace(detail.Refs.EndToEndID); e2e != "" && e2e != endToEndPlaceholder {
			tx.EndToEndID = e2e
		}
		tx.MandateID = strings.TrimSpace(detail.Refs.MndtID)
		tx.UsageText = strings.TrimSpace(strings.Join(detail.RmtInf.Ustrd, " "))

		transactions = append(transactions, tx)
	}
	return transactions, true
}

// counterparty extracts the party opposite the entry's own direction: the
// debtor for incoming money, the creditor for outgoing money.
func counterparty(parties *models.CAMT053RltdPties, direction models.Direction) (name, iban string) {
	if direction == models.DirectionCredit {
		return strings.TrimSpace(parties.Dbtr.Nm), strings.TrimSpace(parties.DbtrAcct.ID.IBAN)
	}
	return strings.TrimSpace(parties.Cdtr.Nm), strings.TrimSpace(parties.CdtrAcct.ID.IBAN)
}

// signedAmount parses the unsigned ISO amount and re-signs it by direction.
func signedAmount(text string, direction models.Direction) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, err
	}
	amount = amount.Abs()
	if direction == models.DirectionDebit {
		amount = amount.Neg()
	}
	return amount, nil
}

func parseDirection(cdtDbtInd string) models.Direction {
	if strings.EqualFold(strings.TrimSpace(cdtDbtInd), "DBIT") {
		return models.DirectionDebit
	}
	return models.DirectionCredit
}

// parseCAMTDate reads an ISO date, accepting the date-time form by taking
// its date part.
func parseCAMTDate(d models.CAMT053Date) (time.Time, error) {
	value := strings.TrimSpace(d.Dt)
	if value == "" {
		value = strings.TrimSpace(d.DtTm)
		if len(value) >= 10 {
			value = value[:10]
		}
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("no date present")
	}
	return time.Parse(dateutils.DateLayoutISO, value)
}
