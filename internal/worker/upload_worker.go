// Package worker reacts to committed uploads published on the message bus.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/pdf"
	"expenses/internal/report"
	"expenses/internal/sheets"
)

// RecordLoader fetches stored expenses by id.
type RecordLoader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]core.Expense, error)
}

// Snapshotter regenerates the on-disk PDF report.
type Snapshotter interface {
	Invalidate()
	WriteSnapshot(ctx context.Context, path string) error
}

// UploadWorker exports freshly ingested expenses and refreshes the PDF
// snapshot. Both steps are optional: a nil exporter skips the export and an
// empty snapshot path skips the PDF.
type UploadWorker struct {
	records      RecordLoader
	exporter     sheets.RecordExporter
	report       Snapshotter
	snapshotPath string
	logger       *log.Logger

	// exported counts rows already written for batches whose export failed
	// part way, so a redelivered message resumes instead of duplicating.
	mu       sync.Mutex
	exported map[string]int
}

func NewUploadWorker(records RecordLoader, exporter sheets.RecordExporter, rep Snapshotter, snapshotPath string, logger *log.Logger) *UploadWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &UploadWorker{
		records:      records,
		exporter:     exporter,
		report:       rep,
		snapshotPath: snapshotPath,
		logger:       logger.WithComponent(log.ComponentWorker),
		exported:     make(map[string]int),
	}
}

// HandleUploadIngested is an amqp.Handler. A returned error requeues the
// message.
func (w *UploadWorker) HandleUploadIngested(ctx context.Context, msg *amqp.UploadIngestedMessage) error {
	w.logger.InfoContext(ctx, "Processing upload",
		log.FieldBatchID, msg.BatchID,
		log.FieldInserted, msg.Inserted,
		log.FieldRejected, msg.Rejected)

	if err := w.export(ctx, msg); err != nil {
		return err
	}

	if w.report != nil {
		w.report.Invalidate()
	}
	return w.RefreshSnapshot(ctx)
}

func (w *UploadWorker) export(ctx context.Context, msg *amqp.UploadIngestedMessage) error {
	if w.exporter == nil || len(msg.ExpenseIDs) == 0 {
		return nil
	}

	records, err := w.records.ListByIDs(ctx, msg.ExpenseIDs)
	if err != nil {
		return fmt.Errorf("load batch %s: %w", msg.BatchID, err)
	}
	if len(records) != len(msg.ExpenseIDs) {
		w.logger.WarnContext(ctx, "Some expenses of the batch are gone",
			log.FieldBatchID, msg.BatchID,
			log.FieldRecords, len(records),
			"expected", len(msg.ExpenseIDs))
	}

	done := min(w.progress(msg.BatchID, 0), len(records))
	if done > 0 {
		w.logger.InfoContext(ctx, "Resuming partial export",
			log.FieldBatchID, msg.BatchID,
			"already_exported", done)
	}

	if err := w.exporter.Export(ctx, records[done:]); err != nil {
		w.progress(msg.BatchID, sheets.ExportedCount(err))
		return fmt.Errorf("export batch %s: %w", msg.BatchID, err)
	}

	w.mu.Lock()
	delete(w.exported, msg.BatchID)
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Batch exported",
		log.FieldBatchID, msg.BatchID,
		log.FieldRecords, len(records)-done)
	return nil
}

// progress adds n to the rows recorded as exported for a batch and returns
// the new total.
func (w *UploadWorker) progress(batchID string, n int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n > 0 {
		w.exported[batchID] += n
	}
	return w.exported[batchID]
}

// RefreshSnapshot rewrites the PDF report file. A missing or unusable
// renderer is logged and otherwise ignored, since retrying cannot fix it.
func (w *UploadWorker) RefreshSnapshot(ctx context.Context) error {
	if w.report == nil || w.snapshotPath == "" {
		return nil
	}

	err := w.report.WriteSnapshot(ctx, w.snapshotPath)
	switch {
	case err == nil:
		w.logger.InfoContext(ctx, "Report snapshot written", "path", w.snapshotPath)
		return nil
	case errors.Is(err, report.ErrNoRenderer), errors.Is(err, pdf.ErrUnavailable):
		w.logger.WarnContext(ctx, "Report snapshot skipped", log.FieldError, err.Error())
		return nil
	default:
		return fmt.Errorf("write report snapshot: %w", err)
	}
}
