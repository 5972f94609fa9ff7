// Package ingest turns uploaded expense files into stored records. Each line
// is validated independently; bad lines are reported, never fatal, and all
// good lines of an upload are committed together.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/encoding"
	"expenses/internal/log"
	"expenses/internal/storage"
)

// Batch is the transactional insert scope handed out by a Store.
type Batch = storage.Batch

//go:generate mockgen -destination=store_mock.go -package=ingest . Store,Batch,Publisher
type Store interface {
	BeginBatch(ctx context.Context) (storage.Batch, error)
}

// Publisher announces committed uploads.
type Publisher interface {
	PublishUploadIngested(ctx context.Context, msg *amqp.UploadIngestedMessage) error
}

// Result summarises one upload.
type Result struct {
	BatchID  string       `json:"batch_id,omitempty"`
	Inserted int          `json:"inserted"`
	Errors   []string     `json:"errors"`
	IDs      []int64      `json:"ids,omitempty"`
	Lines    []LineResult `json:"-"`
}

type Service struct {
	store     Store
	publisher Publisher
	logger    *log.Logger
	newID     func() string
}

type Option func(*Service)

// WithPublisher publishes an upload event after every commit that inserted
// at least one row.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.Discard(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentIngest)
	return s
}

// Ingest reads an upload, decodes it to UTF-8 and stores every valid line in
// a single transaction. The returned error is non-nil only when storage
// fails, in which case nothing was stored and Inserted is 0.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{Errors: []string{}}, fmt.Errorf("read upload: %w", err)
	}
	text, err := encoding.ToUTF8(raw)
	if err != nil {
		return Result{Errors: []string{}}, err
	}
	return s.IngestText(ctx, string(text))
}

// IngestText is Ingest for content that is already UTF-8.
func (s *Service) IngestText(ctx context.Context, text string) (Result, error) {
	res := Result{Errors: []string{}}
	var valid []core.Expense

	for i, raw := range SplitLines(text) {
		lr, skip := ParseLine(i+1, raw)
		if skip {
			continue
		}
		res.Lines = append(res.Lines, lr)
		if !lr.OK() {
			res.Errors = append(res.Errors, lr.Err.Error())
			s.logger.DebugContext(ctx, "Upload line rejected",
				log.FieldLine, lr.Line, log.FieldError, lr.Err.Kind.Error())
			continue
		}
		valid = append(valid, lr.Expense)
	}

	if len(valid) == 0 {
		s.logger.InfoContext(ctx, "Upload contained no valid lines",
			log.NewFields().WithUpload("", 0, len(res.Errors)).ToSlice()...)
		return res, nil
	}

	res.BatchID = s.newID()
	ids, err := s.commit(ctx, valid)
	if err != nil {
		log.LogError(ctx, "Upload batch failed", err, log.ComponentIngest, log.OpCommit,
			log.NewFields().WithUpload(res.BatchID, 0, len(res.Errors)).WithErrorType(log.ErrorTypeDatabase))
		return res, err
	}
	res.IDs = ids
	res.Inserted = len(ids)

	s.logger.InfoContext(ctx, "Upload ingested",
		log.NewFields().WithUpload(res.BatchID, res.Inserted, len(res.Errors)).ToSlice()...)

	s.publish(ctx, res)
	return res, nil
}

func (s *Service) commit(ctx context.Context, records []core.Expense) ([]int64, error) {
	batch, err := s.store.BeginBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upload batch: %w", err)
	}
	defer batch.Rollback()

	ids := make([]int64, 0, len(records))
	for _, e := range records {
		id, err := batch.Add(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("store expense: %w", err)
		}
		ids = append(ids, id)
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit upload batch: %w", err)
	}
	return ids, nil
}

func (s *Service) publish(ctx context.Context, res Result) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewUploadIngestedMessage(res.BatchID, res.IDs, len(res.Errors))
	if err := s.publisher.PublishUploadIngested(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish upload event",
			log.FieldBatchID, res.BatchID, log.FieldError, err.Error())
	}
}
