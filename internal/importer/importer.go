// Package importer drives bulk product imports: it parses an uploaded file
// into a preview, holds the preview until the user confirms it, and then sends
// the valid products to the catalog in one call.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/bowlhouse/internal/archive"
	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/logging"
	"github.com/google/uuid"
)

var (
	// ErrNoValidRows is returned by Submit when no row passed validation.
	// The catalog is not contacted.
	ErrNoValidRows = errors.New("no valid rows to import")

	// ErrSubmissionInProgress is returned when a batch is submitted while an
	// earlier submission of the same batch has not returned yet.
	ErrSubmissionInProgress = errors.New("import already in progress for this batch")

	// ErrBatchNotFound is returned for unknown, expired or finished batches.
	ErrBatchNotFound = errors.New("upload not found")

	// ErrUnsupportedFileType is returned for uploads that are neither CSV nor XLSX.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// DefaultBatchTTL is how long a preview can wait for confirmation.
const DefaultBatchTTL = 30 * time.Minute

// Catalog is the product catalog the importer writes to.
type Catalog interface {
	// BulkCreateProducts stores products and returns how many were accepted.
	BulkCreateProducts(ctx context.Context, products []catalog.Product) (int, error)
	ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error)
}

// Preview is a parsed upload waiting for confirmation.
type Preview struct {
	BatchID   string               `json:"batchId"`
	FileName  string               `json:"fileName"`
	Result    catalog.ImportResult `json:"result"`
	CreatedAt time.Time            `json:"createdAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// Outcome reports a finished submission.
//
// RejectedByServer and InvalidRows are kept apart: the first counts products
// the catalog refused, the second rows that never left the importer. Failed is
// their sum, which is the figure older clients display.
type Outcome struct {
	BatchID          string `json:"batchId"`
	Submitted        int    `json:"submitted"`
	Accepted         int    `json:"accepted"`
	RejectedByServer int    `json:"rejectedByServer"`
	InvalidRows      int    `json:"invalidRows"`
	Failed           int    `json:"failed"`
}

type batch struct {
	preview Preview
	raw     []byte
}

// Service coordinates previews and submissions.
type Service struct {
	catalog  Catalog
	archive  archive.Store
	limiter  *Limiter
	batchTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	batches  map[string]*batch
	inflight map[string]struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithArchive stores every submitted file in store.
func WithArchive(store archive.Store) Option {
	return func(s *Service) { s.archive = store }
}

// WithLimiter bounds concurrent submissions across all batches.
func WithLimiter(l *Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithBatchTTL sets how long previews are kept.
func WithBatchTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.batchTTL = ttl
		}
	}
}

// NewService creates a Service writing to cat.
func NewService(cat Catalog, opts ...Option) *Service {
	s := &Service{
		catalog:  cat,
		archive:  archive.Nop{},
		limiter:  NewLimiter(defaultMaxConcurrent, defaultMaxWait),
		batchTTL: DefaultBatchTTL,
		now:      time.Now,
		batches:  make(map[string]*batch),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseFile decodes an upload by type and validates every data row.
// Files named .xlsx, or starting with a zip signature, are read as workbooks;
// everything else must be CSV text.
func ParseFile(fileName string, data []byte) (catalog.ImportResult, error) {
	if len(data) == 0 {
		return catalog.ImportResult{}, catalog.ErrEmptyFile
	}

	switch ext := strings.ToLower(filepath.Ext(fileName)); {
	case ext == ".xlsx" || bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return catalog.ParseSpreadsheet(bytes.NewReader(data))
	case ext == "" || ext == ".csv" || ext == ".txt":
		text, err := catalog.DecodeText(data)
		if err != nil {
			return catalog.ImportResult{}, err
		}
		return catalog.ParseDocument(text), nil
	default:
		return catalog.ImportResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
}

// Preview parses an upload and keeps it as a new batch until it is
// submitted, discarded or expires.
func (s *Service) Preview(ctx context.Context, fileName string, data []byte) (Preview, error) {
	result, err := ParseFile(fileName, data)
	if err != nil {
		return Preview{}, err
	}
	recordPreview(result.ValidCount(), result.InvalidCount())

	now := s.now()
	p := Preview{
		BatchID:   uuid.NewString(),
		FileName:  fileName,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(s.batchTTL),
	}

	s.mu.Lock()
	s.batches[p.BatchID] = &batch{preview: p, raw: data}
	s.mu.Unlock()
	s.expire(p.BatchID, s.batchTTL)

	logging.WithFields(ctx, "batch_id", p.BatchID, "file", fileName).Info("import previewed",
		"rows", result.Len(),
		"valid", result.ValidCount(),
		"invalid", result.InvalidCount(),
	)
	return p, nil
}

// Batch returns a pending preview.
func (s *Service) Batch(batchID string) (Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return Preview{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return b.preview, nil
}

// Discard drops a pending preview. A submission already running for it still
// completes; its outcome is for the caller to ignore.
func (s *Service) Discard(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	delete(s.batches, batchID)
	return nil
}

// Submit sends the valid rows of a pending batch to the catalog.
//
// On success the batch is archived and removed. On failure it stays pending
// with its rows untouched so the same batch can be submitted again.
//
// The batch stays marked in flight until it is removed, so a second Submit
// either sees ErrSubmissionInProgress or ErrBatchNotFound.
func (s *Service) Submit(ctx context.Context, batchID string) (Outcome, error) {
	if !s.begin(batchID) {
		return Outcome{}, ErrSubmissionInProgress
	}
	defer s.end(batchID)

	s.mu.Lock()
	b, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	outcome, err := s.submit(ctx, batchID, b.preview.Result)
	if err != nil {
		return outcome, err
	}

	s.mu.Lock()
	delete(s.batches, batchID)
	s.mu.Unlock()

	s.archiveBatch(ctx, b)
	return outcome, nil
}

// SubmitResult sends the valid products of result to the catalog in a single
// call. At most one call per batchID runs at a time.
func (s *Service) SubmitResult(ctx context.Context, batchID string, result catalog.ImportResult) (Outcome, error) {
	if !s.begin(batchID) {
		return Outcome{}, ErrSubmissionInProgress
	}
	defer s.end(batchID)

	return s.submit(ctx, batchID, result)
}

// submit does the work of SubmitResult; the caller holds the in-flight mark.
func (s *Service) submit(ctx context.Context, batchID string, result catalog.ImportResult) (Outcome, error) {
	logger := logging.WithFields(ctx, "batch_id", batchID)

	products := result.Products()
	if len(products) == 0 {
		submissions.WithLabelValues("rejected").Inc()
		return Outcome{}, ErrNoValidRows
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer s.limiter.Release()

	start := time.Now()
	accepted, err := s.catalog.BulkCreateProducts(ctx, products)
	submitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		submissions.WithLabelValues("failed").Inc()
		logger.Error("bulk create failed", "products", len(products), "error", err)
		return Outcome{}, fmt.Errorf("bulk create products: %w", err)
	}

	if accepted < 0 || accepted > len(products) {
		logger.Warn("catalog reported out-of-range accepted count",
			"accepted", accepted, "submitted", len(products))
		accepted = max(0, min(accepted, len(products)))
	}

	outcome := Outcome{
		BatchID:          batchID,
		Submitted:        len(products),
		Accepted:         accepted,
		RejectedByServer: len(products) - accepted,
		InvalidRows:      result.InvalidCount(),
		Failed:           result.Len() - accepted,
	}

	submissions.WithLabelValues("success").Inc()
	productsAccepted.Add(float64(outcome.Accepted))
	productsRejected.Add(float64(outcome.RejectedByServer))
	logger.Info("import submitted",
		"submitted", outcome.Submitted,
		"accepted", outcome.Accepted,
		"rejected_by_server", outcome.RejectedByServer,
		"invalid_rows", outcome.InvalidRows,
	)
	return outcome, nil
}

// ListProducts passes through to the catalog.
func (s *Service) ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error) {
	return s.catalog.ListProducts(ctx, opts)
}

// LimiterStatus reports submission slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running submissions finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// PendingBatches returns the number of previews awaiting confirmation.
func (s *Service) PendingBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *Service) begin(batchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[batchID]; busy {
		return false
	}
	s.inflight[batchID] = struct{}{}
	return true
}

func (s *Service) end(batchID string) {
	s.mu.Lock()
	delete(s.inflight, batchID)
	s.mu.Unlock()
}

// expire drops a batch after ttl unless it was already removed.
func (s *Service) expire(batchID string, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		delete(s.batches, batchID)
		s.mu.Unlock()
	})
}

// archiveBatch is best effort: the import already succeeded.
func (s *Service) archiveBatch(ctx context.Context, b *batch) {
	now := s.now()
	key := archive.Key(b.preview.BatchID, b.preview.FileName, now)
	meta := archive.Metadata{
		ContentType:  contentType(b.preview.FileName),
		OriginalName: b.preview.FileName,
		BatchID:      b.preview.BatchID,
		ArchivedAt:   now,
	}
	if err := s.archive.Put(ctx, key, b.raw, meta); err != nil {
		logging.WithFields(ctx, "batch_id", b.preview.BatchID).Warn("archive import file failed",
			"key", key, "error", err)
	}
}

func contentType(fileName string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}
