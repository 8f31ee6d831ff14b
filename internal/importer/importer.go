// Package importer drives a format parser over an uploaded bank export,
// persists the deduplicated transactions and tracks each file's lifecycle.
// It also provides the all-or-nothing rollback of a completed import.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mietwerk/bankrecon/internal/fingerprint"
	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

// Parser converts raw file content into raw transactions. The second return
// value counts rows skipped as unparseable.
type Parser interface {
	Parse(r io.Reader) ([]models.RawTransaction, int, error)
}

// Registry holds the parser per declared source type.
type Registry struct {
	parsers map[models.SourceType]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[models.SourceType]Parser)}
}

// Register adds a parser for a source type, replacing any previous one.
func (r *Registry) Register(source models.SourceType, p Parser) {
	r.parsers[source] = p
}

// Get returns the parser for a source type, or nil.
func (r *Registry) Get(source models.SourceType) Parser {
	return r.parsers[source]
}

// Service is the import orchestrator.
type Service struct {
	ledger   ledger.Ledger
	registry *Registry
	log      *logrus.Logger
}

// NewService creates an import service against the given ledger and parser
// registry.
func NewService(l ledger.Ledger, registry *Registry, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{ledger: l, registry: registry, log: log}
}

// Import runs the full import protocol for one uploaded file: create the
// file row, parse, fingerprint, insert non-duplicates, record statistics.
// A parse failure marks the file failed and is returned as the error; a
// per-row insert failure is recorded on the file and does not abort the
// batch.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, filename string, source models.SourceType, data []byte) (*models.BankImportFile, error) {
	now := time.Now()
	file := &models.BankImportFile{
		ID:        uuid.New(),
		UserID:    userID,
		Filename:  filename,
		Source:    source,
		ByteSize:  int64(len(data)),
		Status:    models.ImportPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.InsertImportFile(ctx, file); err != nil {
		return nil, fmt.Errorf("creating import file record: %w", err)
	}

	file.Status = models.ImportProcessing
	if err := s.ledger.UpdateImportFile(ctx, file); err != nil {
		return nil, fmt.Errorf("updating import file record: %w", err)
	}

	parser := s.registry.Get(source)
	if parser == nil {
		err := fmt.Errorf("no parser registered for source type %q", source)
		s.failFile(ctx, file, err)
		return file, err
	}

	raws, skipped, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		s.failFile(ctx, file, err)
		return file, err
	}

	file.TotalRows = len(raws)
	file.SkippedRows = skipped
	for i := range raws {
		s.importRow(ctx, file, &raws[i])
	}

	file.Status = models.ImportCompleted
	if err := s.ledger.UpdateImportFile(ctx, file); err != nil {
		return nil, fmt.Errorf("completing import file record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"file":       filename,
		"total":      file.TotalRows,
		"imported":   file.ImportedRows,
		"duplicates": file.DuplicateRows,
		"skipped":    file.SkippedRows,
	}).Info("Import completed")
	return file, nil
}

// importRow inserts one raw transaction unless its fingerprint already
// exists for the user. The unique index backs the lookup against races.
func (s *Service) importRow(ctx context.Context, file *models.BankImportFile, raw *models.RawTransaction) {
	fp := fingerprint.ForRaw(file.UserID, raw)

	if _, err := s.ledger.FindTransactionByFingerprint(ctx, file.UserID, fp); err == nil {
		file.DuplicateRows++
		return
	} else if !errors.Is(err, ledger.ErrNotFound) {
		file.RowErrors = append(file.RowErrors, fmt.Sprintf("fingerprint lookup: %v", err))
		return
	}

	now := time.Now()
	tx := &models.BankTransaction{
		ID:               uuid.New(),
		UserID:           file.UserID,
		ImportFileID:     file.ID,
		BookingDate:      raw.BookingDate,
		ValueDate:        raw.ValueDate,
		Amount:           raw.Amount,
		Currency:         raw.Currency,
		Direction:        raw.Direction,
		CounterpartyName: raw.CounterpartyName,
		CounterpartyIBAN: raw.CounterpartyIBAN,
		UsageText:        raw.UsageText,
		EndToEndID:       raw.EndToEndID,
		MandateID:        raw.MandateID,
		BankReference:    raw.BankReference,
		Fingerprint:      fp,
		Status:           models.StatusUnmatched,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	switch err := s.ledger.InsertTransaction(ctx, tx); {
	case err == nil:
		file.ImportedRows++
	case errors.Is(err, ledger.ErrDuplicateFingerprint):
		// Lost the race against a concurrent import of the same line.
		file.DuplicateRows++
	default:
		file.RowErrors = append(file.RowErrors, fmt.Sprintf("row insert (%s): %v",
			raw.BookingDate.Format("2006-01-02"), err))
	}
}

func (s *Service) failFile(ctx context.Context, file *models.BankImportFile, cause error) {
	file.Status = models.ImportFailed
	file.ErrorMessage = cause.Error()
	if err := s.ledger.UpdateImportFile(ctx, file); err != nil {
		s.log.WithError(err).Error("Failed to mark import file as failed")
	}
	s.log.WithFields(logrus.Fields{
		"file":  file.Filename,
		"error": cause,
	}).Error("Import failed during parsing")
}

// RollbackOutcome reports what a rollback did, or that there was nothing
// left to do.
type RollbackOutcome struct {
	AlreadyDeleted bool
	Result         ledger.RollbackResult
}

// Rollback atomically reverses everything an import file produced. Rolling
// back an already rolled back file is idempotent and reports AlreadyDeleted
// instead of erroring.
func (s *Service) Rollback(ctx context.Context, userID, fileID uuid.UUID) (*RollbackOutcome, error) {
	file, err := s.ledger.GetImportFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.DeletedAt != nil || file.Status == models.ImportRolledBack {
		return &RollbackOutcome{AlreadyDeleted: true}, nil
	}

	before, err := s.ledger.CountTransactionsForImportFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"file":         file.Filename,
		"transactions": before,
	}).Info("Rolling back import")

	result, err := s.ledger.RollbackImport(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	file, err = s.ledger.GetImportFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	file.RollbackSummary = fmt.Sprintf(
		"removed %d transactions, soft-deleted %d allocations, recalculated %d obligations",
		result.DeletedTransactions, result.DeletedAllocations, result.RecalcedObligations)
	if err := s.ledger.UpdateImportFile(ctx, file); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"file":         file.Filename,
		"transactions": result.DeletedTransactions,
		"allocations":  result.DeletedAllocations,
		"obligations":  result.RecalcedObligations,
	}).Info("Rollback completed")
	return &RollbackOutcome{Result: result}, nil
}

// CanRollback reports whether rollback should be offered for a file: only a
// completed, not yet rolled back file that still has transactions qualifies.
func (s *Service) CanRollback(ctx context.Context, userID, fileID uuid.UUID) (bool, error) {
	file, err := s.ledger.GetImportFile(ctx, userID, fileID)
	if err != nil {
		return false, err
	}
	if !file.CanRollback() {
		return false, nil
	}
	remaining, err := s.ledger.CountTransactionsForImportFile(ctx, userID, fileID)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}
