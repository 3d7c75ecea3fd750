package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// CSV Ingestion
//
// Parses a transaction ledger export into models.Transaction records. The
// file must carry a header row naming the five required columns (order does
// not matter, extra columns are ignored). Validation is collected rather than
// fail-fast so the caller can report every problem in one response.

var requiredColumns = []string{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp"}

// timestampLayouts in the order exports actually use them.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ValidationResult reports everything wrong (or merely odd) with an upload.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	RowCount     int      `json:"row_count"`
	AccountCount int      `json:"account_count"`
}

func (v *ValidationResult) addError(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) addWarning(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Parse reads the ledger CSV and returns the transactions together with the
// validation report. The returned error covers only unreadable input; content
// problems land in the report with Valid=false and no transactions.
func Parse(r io.Reader) ([]models.Transaction, *ValidationResult, error) {
	result := &ValidationResult{}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		result.addError("file is empty")
		return nil, result, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			result.addError("missing required column: %s", col)
		}
	}
	if len(result.Errors) > 0 {
		return nil, result, nil
	}

	var txs []models.Transaction
	seenIDs := make(map[string]struct{})
	accounts := make(map[string]struct{})

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.addError("row %d: %v", row, err)
			continue
		}

		tx := models.Transaction{
			ID:         strings.TrimSpace(record[colIndex["transaction_id"]]),
			SenderID:   strings.TrimSpace(record[colIndex["sender_id"]]),
			ReceiverID: strings.TrimSpace(record[colIndex["receiver_id"]]),
		}

		ok := true
		if tx.ID == "" {
			result.addError("row %d: empty transaction_id", row)
			ok = false
		}
		if tx.SenderID == "" {
			result.addError("row %d: empty sender_id", row)
			ok = false
		}
		if tx.ReceiverID == "" {
			result.addError("row %d: empty receiver_id", row)
			ok = false
		}

		rawAmount := strings.TrimSpace(record[colIndex["amount"]])
		amount, err := strconv.ParseFloat(rawAmount, 64)
		switch {
		case err != nil:
			result.addError("row %d: amount %q is not numeric", row, rawAmount)
			ok = false
		case amount < 0:
			result.addError("row %d: negative amount %s", row, rawAmount)
			ok = false
		default:
			tx.Amount = amount
		}

		rawTS := strings.TrimSpace(record[colIndex["timestamp"]])
		ts, tsErr := parseTimestamp(rawTS)
		if tsErr != nil {
			result.addError("row %d: unparseable timestamp %q", row, rawTS)
			ok = false
		} else {
			tx.Timestamp = ts
		}

		if !ok {
			continue
		}

		if _, dup := seenIDs[tx.ID]; dup {
			result.addWarning("row %d: duplicate transaction_id %s", row, tx.ID)
		}
		seenIDs[tx.ID] = struct{}{}
		accounts[tx.SenderID] = struct{}{}
		accounts[tx.ReceiverID] = struct{}{}
		txs = append(txs, tx)
	}

	result.RowCount = len(txs)
	result.AccountCount = len(accounts)

	if len(txs) == 0 && len(result.Errors) == 0 {
		result.addError("file contains no transaction rows")
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		return nil, result, nil
	}
	return txs, result, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", raw)
}
