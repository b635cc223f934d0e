package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/store"
)

// TransactionQueryService provides read-only views over transaction
// history. Read paths are permissive: an unknown account id yields an
// empty result, never an error.
type TransactionQueryService struct {
	store *store.Store
}

func NewTransactionQueryService(st *store.Store) *TransactionQueryService {
	return &TransactionQueryService{store: st}
}

// Statement returns an account's records, optionally bounded by
// timestamps, newest first.
func (qs *TransactionQueryService) Statement(ctx context.Context, accountID string, from, to *time.Time) ([]models.TransactionRecord, error) {
	records, err := qs.scan(ctx, func(rec *models.TransactionRecord) bool {
		if rec.AccountID != accountID {
			return false
		}
		if from != nil && rec.CreatedAt.Before(*from) {
			return false
		}
		if to != nil && rec.CreatedAt.After(*to) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// TransactionSummary is the fold Summary computes over a statement.
type TransactionSummary struct {
	Count          int                               `json:"count"`
	TotalsByKind   map[models.TransactionKind]int64  `json:"totals_by_kind"`
	CompletedCount int                               `json:"completed_count"`
	FailedCount    int                               `json:"failed_count"`
	PendingCount   int                               `json:"pending_count"`
}

// Summary folds an account statement into per-kind totals and per-status
// counts.
func (qs *TransactionQueryService) Summary(ctx context.Context, accountID string, from, to *time.Time) (*TransactionSummary, error) {
	records, err := qs.Statement(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &TransactionSummary{
		Count:        len(records),
		TotalsByKind: make(map[models.TransactionKind]int64),
	}
	for _, rec := range records {
		summary.TotalsByKind[rec.Kind] += rec.Amount
		switch rec.Status {
		case models.TxCompleted:
			summary.CompletedCount++
		case models.TxFailed:
			summary.FailedCount++
		case models.TxPending:
			summary.PendingCount++
		}
	}
	return summary, nil
}

// ByKind returns every record of one kind, in insertion order.
func (qs *TransactionQueryService) ByKind(ctx context.Context, kind models.TransactionKind) ([]models.TransactionRecord, error) {
	return qs.scan(ctx, func(rec *models.TransactionRecord) bool {
		return rec.Kind == kind
	})
}

// ByStatus returns every record in one status, in insertion order.
func (qs *TransactionQueryService) ByStatus(ctx context.Context, status models.TransactionStatus) ([]models.TransactionRecord, error) {
	return qs.scan(ctx, func(rec *models.TransactionRecord) bool {
		return rec.Status == status
	})
}

// Transaction is a point lookup by transaction id.
func (qs *TransactionQueryService) Transaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	found, err := qs.store.Get(ctx, TransactionsCollection, "transaction_id", transactionID, &rec)
	if err != nil {
		return nil, storageError(err)
	}
	if !found {
		return nil, ErrTransactionNotFound
	}
	return &rec, nil
}

// Recent returns all records from the last n days, newest first.
func (qs *TransactionQueryService) Recent(ctx context.Context, days int) ([]models.TransactionRecord, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	records, err := qs.scan(ctx, func(rec *models.TransactionRecord) bool {
		return !rec.CreatedAt.Before(cutoff)
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// Search matches records whose description or reference number contains
// the term, case-insensitively.
func (qs *TransactionQueryService) Search(ctx context.Context, term string) ([]models.TransactionRecord, error) {
	term = strings.ToLower(term)
	return qs.scan(ctx, func(rec *models.TransactionRecord) bool {
		return strings.Contains(strings.ToLower(rec.Description), term) ||
			(rec.ReferenceNumber != "" && strings.Contains(strings.ToLower(rec.ReferenceNumber), term))
	})
}

// TransactionStatistics aggregates the whole history.
type TransactionStatistics struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Pending         int     `json:"pending"`
	SuccessRate     float64 `json:"success_rate"`
	CompletedVolume int64   `json:"completed_volume"`
}

// Statistics computes global counts, the success rate, and the total
// completed volume.
func (qs *TransactionQueryService) Statistics(ctx context.Context) (*TransactionStatistics, error) {
	records, err := qs.scan(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &TransactionStatistics{Total: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case models.TxCompleted:
			stats.Completed++
			stats.CompletedVolume += rec.Amount
		case models.TxFailed:
			stats.Failed++
		case models.TxPending:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}

func (qs *TransactionQueryService) scan(ctx context.Context, keep func(*models.TransactionRecord) bool) ([]models.TransactionRecord, error) {
	docs, err := qs.store.List(ctx, TransactionsCollection, nil)
	if err != nil {
		return nil, storageError(err)
	}
	records := []models.TransactionRecord{}
	for _, doc := range docs {
		var rec models.TransactionRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode transaction record: %w", err)
		}
		if keep == nil || keep(&rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func sortNewestFirst(records []models.TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
