// Package main provides the entry point for the bankrecon CLI, the operator
// driver around the reconciliation core: imports, rollbacks, suggestion
// runs, inbox triage and CSV mapping management.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mietwerk/bankrecon/internal/allocation"
	"mietwerk/bankrecon/internal/camtparser"
	"mietwerk/bankrecon/internal/config"
	"mietwerk/bankrecon/internal/csvparser"
	"mietwerk/bankrecon/internal/importer"
	"mietwerk/bankrecon/internal/inbox"
	"mietwerk/bankrecon/internal/ledger/gormledger"
	"mietwerk/bankrecon/internal/mappingstore"
	"mietwerk/bankrecon/internal/models"
	"mietwerk/bankrecon/internal/suggestion"
)

var (
	log = logrus.New()

	inputFile   string
	source      string
	mappingName string
	userIDStr   string
	fileIDStr   string
	statuses    []string
	exportFile  string
	saveName    string
	confirmed   bool
	deleteName  string
	txIDStr     string
	targetType  string
	targetIDStr string
	amountStr   string
	notes       string
)

var rootCmd = &cobra.Command{
	Use:   "bankrecon",
	Short: "Bank statement reconciliation for the Mietwerk property management backend.",
	Long: `bankrecon imports bank export files (CSV, CAMT.053), deduplicates the
transactions, matches them against rent dues and manual entries, and
suggests likely tenant counterparties for operator review.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info("Use --help to see available commands")
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
		log = config.ConfigureLogging()
		csvparser.SetLogger(log)
		camtparser.SetLogger(log)
		mappingstore.SetLogger(log)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank export file",
	Long:  `Import a CSV or CAMT.053 bank export file, deduplicating against earlier imports.`,
	Run:   importFunc,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back everything an import file produced",
	Long: `Atomically remove all transactions of an import file, soft-delete their
allocations and restore the affected obligations. Requires --yes.`,
	Run: rollbackFunc,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Run a suggestion pass over unmatched incoming transactions",
	Run:   suggestFunc,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List transactions for triage, optionally exporting to CSV",
	Run:   inboxFunc,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Auto-detect the format of a CSV bank export",
	Long: `Scan a CSV file for its header row, delimiter and column mapping. The
proposal is printed for confirmation and only persisted with --save.`,
	Run: detectFunc,
}

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List or delete stored CSV mappings",
	Run:   mappingsFunc,
}

func loadConfig() *config.Config {
	cfg, err := config.InitializeConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	return cfg
}

func openLedger(cfg *config.Config) *gormledger.GormLedger {
	l, err := gormledger.Open(cfg.Ledger.Path)
	if err != nil {
		log.Fatalf("Error opening ledger database: %v", err)
	}
	return l
}

func parseUserID() uuid.UUID {
	id, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Fatalf("Invalid user id %q: %v", userIDStr, err)
	}
	return id
}

func importFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	userID := parseUserID()

	data, err := os.ReadFile(inputFile)
	if err != nil {
		log.Fatalf("Error reading input file: %v", err)
	}

	registry := importer.NewRegistry()
	registry.Register(models.SourceCAMT053, camtparser.New())

	sourceType := models.SourceType(strings.ToLower(source))
	if sourceType == models.SourceCSV {
		if mappingName == "" {
			log.Fatal("CSV imports require --mapping naming a stored column mapping")
		}
		store := mappingstore.New(cfg.Mappings.Directory)
		named, err := store.Load(mappingName)
		if err != nil {
			log.Fatalf("Error loading mapping: %v", err)
		}
		registry.Register(models.SourceCSV, csvparser.New(named.Mapping, named.Hints()))
	}

	service := importer.NewService(openLedger(cfg), registry, log)
	file, err := service.Import(context.Background(), userID, inputFile, sourceType, data)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Infof("Import %s completed: %d total, %d imported, %d duplicates, %d skipped",
		file.ID, file.TotalRows, file.ImportedRows, file.DuplicateRows, file.SkippedRows)
	for _, rowErr := range file.RowErrors {
		log.Warnf("Row error: %s", rowErr)
	}
}

func rollbackFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	userID := parseUserID()

	fileID, err := uuid.Parse(fileIDStr)
	if err != nil {
		log.Fatalf("Invalid import file id %q: %v", fileIDStr, err)
	}
	if !confirmed {
		log.Fatal("Rollback removes all transactions of the import; re-run with --yes to confirm")
	}

	service := importer.NewService(openLedger(cfg), importer.NewRegistry(), log)
	outcome, err := service.Rollback(context.Background(), userID, fileID)
	if err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
	if outcome.AlreadyDeleted {
		log.Info("Import file was already rolled back; nothing to do")
		return
	}
	log.Infof("Rollback completed: %d transactions removed, %d allocations soft-deleted, %d obligations recalculated",
		outcome.Result.DeletedTransactions, outcome.Result.DeletedAllocations, outcome.Result.RecalcedObligations)
}

func suggestFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	userID := parseUserID()

	service := suggestion.NewService(openLedger(cfg), suggestion.Config{
		MinConfidence:     cfg.Suggestion.MinConfidence,
		PromoteConfidence: cfg.Suggestion.PromoteConfidence,
		BatchLimit:        cfg.Suggestion.BatchLimit,
	}, log)

	result, err := service.RunBatch(context.Background(), userID)
	if err != nil {
		log.Fatalf("Suggestion run failed: %v", err)
	}
	log.Infof("Suggestion run completed: %d scanned, %d promoted", result.Scanned, result.Promoted)
}

func inboxFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	userID := parseUserID()
	service := inbox.NewService(openLedger(cfg), log)

	var filter inbox.Filter
	for _, s := range statuses {
		filter.Statuses = append(filter.Statuses, models.TransactionStatus(strings.ToLower(s)))
	}

	if exportFile != "" {
		f, err := os.Create(exportFile)
		if err != nil {
			log.Fatalf("Error creating export file: %v", err)
		}
		defer f.Close()
		if err := service.ExportCSV(context.Background(), userID, filter, f); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Infof("Exported inbox listing to %s", exportFile)
		return
	}

	counts, err := service.Counts(context.Background(), userID)
	if err != nil {
		log.Fatalf("Error counting transactions: %v", err)
	}
	for status, count := range counts {
		log.Infof("%-15s %d", status, count)
	}

	page, err := service.List(context.Background(), userID, filter)
	if err != nil {
		log.Fatalf("Error listing transactions: %v", err)
	}
	for i := range page.Transactions {
		tx := &page.Transactions[i]
		log.Infof("%s  %s  %10s %s  %-14s  %s",
			tx.ID, tx.BookingDate.Format("2006-01-02"), tx.Amount.StringFixed(2),
			tx.Currency, tx.Status, tx.CounterpartyName)
	}
	log.Infof("Showing %d of %d transactions", len(page.Transactions), page.Total)
}

func detectFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	data, err := os.ReadFile(inputFile)
	if err != nil {
		log.Fatalf("Error reading input file: %v", err)
	}

	detected, err := csvparser.Detect(string(data))
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	fmt.Printf("Header row:        %d\n", detected.HeaderRow)
	fmt.Printf("Delimiter:         %q\n", string(detected.Hints.Delimiter))
	fmt.Printf("Decimal separator: %q\n", string(detected.Hints.DecimalSeparator))
	fmt.Printf("Booking date:      %s\n", detected.Mapping.BookingDate)
	fmt.Printf("Amount:            %s\n", detected.Mapping.Amount)
	fmt.Printf("Value date:        %s\n", detected.Mapping.ValueDate)
	fmt.Printf("Counterparty:      %s\n", detected.Mapping.CounterpartyName)
	fmt.Printf("IBAN:              %s\n", detected.Mapping.CounterpartyIBAN)
	fmt.Printf("Usage text:        %s\n", detected.Mapping.UsageText)
	fmt.Printf("Direction:         %s\n", detected.Mapping.DirectionIndicator)
	fmt.Printf("Currency:          %s\n", detected.Mapping.Currency)

	if saveName != "" {
		store := mappingstore.New(cfg.Mappings.Directory)
		if err := store.Save(mappingstore.FromDetected(saveName, detected)); err != nil {
			log.Fatalf("Error saving mapping: %v", err)
		}
		log.Infof("Saved mapping %q", saveName)
	}
}

func mappingsFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	store := mappingstore.New(cfg.Mappings.Directory)

	if deleteName != "" {
		if err := store.Delete(deleteName); err != nil {
			log.Fatalf("Error deleting mapping: %v", err)
		}
		log.Infof("Deleted mapping %q", deleteName)
		return
	}

	names, err := store.List()
	if err != nil {
		log.Fatalf("Error listing mappings: %v", err)
	}
	if len(names) == 0 {
		log.Info("No stored mappings")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate a transaction to an obligation",
	Long:  `Attach (part of) a transaction's amount to a rent payment, income entry or expense.`,
	Run:   allocateFunc,
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo all live allocations of a transaction",
	Run:   undoFunc,
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Exclude a transaction from matching",
	Run:   ignoreFunc,
}

var unignoreCmd = &cobra.Command{
	Use:   "unignore",
	Short: "Return an ignored transaction to the unmatched pool",
	Run:   unignoreFunc,
}

func parseTxID() uuid.UUID {
	id, err := uuid.Parse(txIDStr)
	if err != nil {
		log.Fatalf("Invalid transaction id %q: %v", txIDStr, err)
	}
	return id
}

func allocateFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	userID := parseUserID()
	txID := parseTxID()

	targetID, err := uuid.Parse(targetIDStr)
	if err != nil {
		log.Fatalf("Invalid target id %q: %v", targetIDStr, err)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		log.Fatalf("Invalid amount %q: %v", amountStr, err)
	}

	service := allocation.NewService(openLedger(cfg), log)
	err = service.Allocate(context.Background(), userID, txID, []allocation.Request{{
		Target:   models.AllocationTarget(strings.ToLower(targetType)),
		TargetID: targetID,
		Amount:   amount,
		Notes:    notes,
	}}, models.CreatedByManual)
	if err != nil {
		log.Fatalf("Allocation failed: %v", err)
	}
	log.Infof("Allocated %s to %s %s", amount.StringFixed(2), targetType, targetID)
}

func undoFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	service := allocation.NewService(openLedger(cfg), log)
	if err := service.Undo(context.Background(), parseUserID(), parseTxID()); err != nil {
		log.Fatalf("Undo failed: %v", err)
	}
	log.Info("Allocations undone; transaction reset to unmatched")
}

func ignoreFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	service := allocation.NewService(openLedger(cfg), log)
	if err := service.Ignore(context.Background(), parseUserID(), parseTxID()); err != nil {
		log.Fatalf("Ignore failed: %v", err)
	}
	log.Info("Transaction ignored")
}

func unignoreFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	service := allocation.NewService(openLedger(cfg), log)
	if err := service.Unignore(context.Background(), parseUserID(), parseTxID()); err != nil {
		log.Fatalf("Unignore failed: %v", err)
	}
	log.Info("Transaction returned to the unmatched pool")
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(unignoreCmd)

	rootCmd.PersistentFlags().StringVarP(&userIDStr, "user", "u", "", "User id owning the data (required for data commands)")

	importCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input bank export file (required)")
	importCmd.Flags().StringVarP(&source, "source", "s", "csv", "Source type: csv or camt053")
	importCmd.Flags().StringVarP(&mappingName, "mapping", "m", "", "Stored CSV mapping name (required for csv)")
	importCmd.MarkFlagRequired("input")

	rollbackCmd.Flags().StringVarP(&fileIDStr, "file", "f", "", "Import file id to roll back (required)")
	rollbackCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the rollback")
	rollbackCmd.MarkFlagRequired("file")

	inboxCmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	inboxCmd.Flags().StringVarP(&exportFile, "export", "o", "", "Export the listing to a CSV file")

	detectCmd.Flags().StringVarP(&inputFile, "input", "i", "", "CSV file to inspect (required)")
	detectCmd.Flags().StringVar(&saveName, "save", "", "Save the detected mapping under this name")
	detectCmd.MarkFlagRequired("input")

	mappingsCmd.Flags().StringVar(&deleteName, "delete", "", "Delete the named mapping")

	allocateCmd.Flags().StringVarP(&txIDStr, "tx", "t", "", "Transaction id (required)")
	allocateCmd.Flags().StringVar(&targetType, "target", "rent_payment", "Target type: rent_payment, income_entry or expense")
	allocateCmd.Flags().StringVar(&targetIDStr, "target-id", "", "Target obligation id (required)")
	allocateCmd.Flags().StringVarP(&amountStr, "amount", "a", "", "Amount to allocate (required)")
	allocateCmd.Flags().StringVarP(&notes, "notes", "n", "", "Optional notes")
	allocateCmd.MarkFlagRequired("tx")
	allocateCmd.MarkFlagRequired("target-id")
	allocateCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{undoCmd, ignoreCmd, unignoreCmd} {
		c.Flags().StringVarP(&txIDStr, "tx", "t", "", "Transaction id (required)")
		c.MarkFlagRequired("tx")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
