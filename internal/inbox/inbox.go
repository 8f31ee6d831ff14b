// Package inbox is the review surface over imported transactions: filtered,
// paginated listings for operator triage, per-status counts, the live
// allocations of a transaction, and a CSV export of a listing.
package inbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mietwerk/bankrecon/internal/dateutils"
	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

// Filter narrows an inbox listing. Page numbering starts at 1.
type Filter struct {
	Statuses     []models.TransactionStatus
	From         *time.Time
	To           *time.Time
	Direction    models.Direction
	ImportFileID *uuid.UUID
	Page         int
	PerPage      int
}

// Page is one page of an inbox listing.
type Page struct {
	Transactions []models.BankTransaction
	Total        int64
	Page         int
	PerPage      int
}

// Service is the inbox query surface.
type Service struct {
	ledger ledger.Ledger
	log    *logrus.Logger
}

// NewService creates an inbox service against the given ledger.
func NewService(l ledger.Ledger, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{ledger: l, log: log}
}

// defaultPerPage bounds unpaginated listings.
const defaultPerPage = 50

// List returns one page of transactions matching the filter.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter Filter) (*Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}

	transactions, total, err := s.ledger.ListTransactions(ctx, userID, ledger.TransactionFilter{
		Statuses:     filter.Statuses,
		From:         filter.From,
		To:           filter.To,
		Direction:    filter.Direction,
		ImportFileID: filter.ImportFileID,
		Limit:        filter.PerPage,
		Offset:       (filter.Page - 1) * filter.PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return &Page{
		Transactions: transactions,
		Total:        total,
		Page:         filter.Page,
		PerPage:      filter.PerPage,
	}, nil
}

// Counts returns the number of transactions per status for triage totals.
func (s *Service) Counts(ctx context.Context, userID uuid.UUID) (map[models.TransactionStatus]int64, error) {
	return s.ledger.CountTransactionsByStatus(ctx, userID)
}

// Allocations returns the live allocations of a transaction, ordered by
// creation.
func (s *Service) Allocations(ctx context.Context, userID, txID uuid.UUID) ([]models.BankTransactionAllocation, error) {
	if _, err := s.ledger.GetTransaction(ctx, userID, txID); err != nil {
		return nil, err
	}
	return s.ledger.LiveAllocationsForTransaction(ctx, userID, txID)
}

// exportRow is the CSV shape of an exported inbox listing.
type exportRow struct {
	Date         string `csv:"Date"`
	ValueDate    string `csv:"ValueDate"`
	Amount       string `csv:"Amount"`
	Currency     string `csv:"Currency"`
	Direction    string `csv:"Direction"`
	Counterparty string `csv:"Counterparty"`
	IBAN         string `csv:"IBAN"`
	UsageText    string `csv:"UsageText"`
	Reference    string `csv:"Reference"`
	Status       string `csv:"Status"`
	MatchedBy    string `csv:"MatchedBy"`
	Confidence   string `csv:"Confidence"`
}

// ExportCSV writes every transaction matching the filter as CSV. Pagination
// in the filter is ignored; the export walks all pages.
func (s *Service) ExportCSV(ctx context.Context, userID uuid.UUID, filter Filter, w io.Writer) error {
	filter.Page = 1
	if filter.PerPage < 1 {
		filter.PerPage = 500
	}

	var rows []exportRow
	for {
		page, err := s.List(ctx, userID, filter)
		if err != nil {
			return err
		}
		for i := range page.Transactions {
			rows = append(rows, toExportRow(&page.Transactions[i]))
		}
		if int64(filter.Page*filter.PerPage) >= page.Total {
			break
		}
		filter.Page++
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing CSV export: %w", err)
	}
	s.log.WithField("count", len(rows)).Info("Exported inbox listing to CSV")
	return nil
}

func toExportRow(tx *models.BankTransaction) exportRow {
	row := exportRow{
		Date:         dateutils.ToISODate(tx.BookingDate),
		Amount:       tx.Amount.StringFixed(2),
		Currency:     tx.Currency,
		Direction:    string(tx.Direction),
		Counterparty: tx.CounterpartyName,
		IBAN:         tx.CounterpartyIBAN,
		UsageText:    tx.UsageText,
		Reference:    tx.BankReference,
		Status:       string(tx.Status),
		MatchedBy:    tx.MatchedBy,
	}
	if tx.ValueDate != nil {
		row.ValueDate = dateutils.ToISODate(*tx.ValueDate)
	}
	if tx.Confidence != nil {
		row.Confidence = fmt.Sprintf("%.2f", *tx.Confidence)
	}
	return row
}
