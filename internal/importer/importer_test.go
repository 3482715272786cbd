package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/bowlhouse/internal/archive"
	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu       sync.Mutex
	calls    int
	received [][]catalog.Product
	accept   func(n int) int
	err      error
	release  chan struct{} // when set, BulkCreateProducts blocks until closed
	started  chan struct{}
}

func (f *fakeCatalog) BulkCreateProducts(ctx context.Context, products []catalog.Product) (int, error) {
	f.mu.Lock()
	f.calls++
	f.received = append(f.received, products)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if f.err != nil {
		return 0, f.err
	}
	if f.accept != nil {
		return f.accept(len(products)), nil
	}
	return len(products), nil
}

func (f *fakeCatalog) ListProducts(context.Context, catalog.ListOptions) ([]catalog.Product, error) {
	return nil, nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *memArchive) Put(_ context.Context, key string, _ []byte, _ archive.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return m.err
}

const mixedCSV = `name,category,bowlType,price,calories,protein,carbs,fat,fiber,sugar
Caesar Salad,Classic,gm350,250,350,15,25,18,5,3
Greek Salad,Mediterranean,gm250,200,280,12,20,15,4,2
,Classic,gm350,250,350,15,25,18,5,3
Big Bowl,Classic,large,250,350,15,25,18,5,3`

func TestParseFile(t *testing.T) {
	res, err := ParseFile("menu.csv", []byte(mixedCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Len())
	assert.Equal(t, 2, res.ValidCount())

	_, err = ParseFile("menu.csv", nil)
	assert.ErrorIs(t, err, catalog.ErrEmptyFile)

	_, err = ParseFile("menu.csv", []byte("\xef\xbb\xbf"))
	assert.ErrorIs(t, err, catalog.ErrEmptyFile)

	res, err = ParseFile("menu.csv", []byte("name,category,bowlType,price,calories,protein,carbs,fat,fiber,sugar\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	_, err = ParseFile("menu.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = ParseFile("menu.xlsx", []byte("not a zip"))
	require.Error(t, err)
	assert.Equal(t, "FILE006", MapError(err).Code)
}

func TestService_PreviewAndSubmit(t *testing.T) {
	cat := &fakeCatalog{}
	arc := &memArchive{}
	svc := NewService(cat, WithArchive(arc))
	ctx := context.Background()

	p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)
	assert.NotEmpty(t, p.BatchID)
	assert.Equal(t, 2, p.Result.ValidCount())
	assert.Equal(t, 2, p.Result.InvalidCount())
	assert.Equal(t, 1, svc.PendingBatches())

	got, err := svc.Batch(p.BatchID)
	require.NoError(t, err)
	assert.Equal(t, p.Result.Rows(), got.Result.Rows())

	outcome, err := svc.Submit(ctx, p.BatchID)
	require.NoError(t, err)
	assert.Equal(t, Outcome{
		BatchID:     p.BatchID,
		Submitted:   2,
		Accepted:    2,
		InvalidRows: 2,
		Failed:      2,
	}, outcome)

	require.Equal(t, 1, cat.callCount())
	require.Len(t, cat.received[0], 2)
	assert.Equal(t, "Caesar Salad", cat.received[0][0].Name)
	assert.Equal(t, "Greek Salad", cat.received[0][1].Name)
	for _, prod := range cat.received[0] {
		assert.True(t, prod.Active)
		assert.Empty(t, prod.Recipe)
	}

	require.Len(t, arc.keys, 1)
	assert.True(t, strings.HasSuffix(arc.keys[0], "/"+p.BatchID+"/menu.csv"))

	_, err = svc.Submit(ctx, p.BatchID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	assert.Equal(t, 0, svc.PendingBatches())
}

func TestService_SubmitZeroValidRowsIsLocal(t *testing.T) {
	cat := &fakeCatalog{}
	svc := NewService(cat)
	ctx := context.Background()

	p, err := svc.Preview(ctx, "bad.csv", []byte("h\n,,\nx,y,large,1,1,1,1,1,1,1"))
	require.NoError(t, err)
	require.Equal(t, 0, p.Result.ValidCount())

	_, err = svc.Submit(ctx, p.BatchID)
	assert.ErrorIs(t, err, ErrNoValidRows)
	assert.Equal(t, 0, cat.callCount())

	_, err = svc.SubmitResult(ctx, "empty", catalog.ImportResult{})
	assert.ErrorIs(t, err, ErrNoValidRows)
	assert.Equal(t, 0, cat.callCount())
}

func TestService_SeparatesServerRejections(t *testing.T) {
	cat := &fakeCatalog{accept: func(n int) int { return n - 1 }}
	svc := NewService(cat)

	res := catalog.ParseDocument(mixedCSV)
	outcome, err := svc.SubmitResult(context.Background(), "b1", res)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Submitted)
	assert.Equal(t, 1, outcome.Accepted)
	assert.Equal(t, 1, outcome.RejectedByServer)
	assert.Equal(t, 2, outcome.InvalidRows)
	assert.Equal(t, 3, outcome.Failed)
	assert.Equal(t, outcome.Failed, outcome.RejectedByServer+outcome.InvalidRows)
}

func TestService_ClampsAcceptedCount(t *testing.T) {
	cat := &fakeCatalog{accept: func(n int) int { return n + 10 }}
	svc := NewService(cat)

	outcome, err := svc.SubmitResult(context.Background(), "b1", catalog.ParseDocument(mixedCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Accepted)
	assert.Equal(t, 0, outcome.RejectedByServer)
}

func TestService_FailedSubmissionKeepsBatch(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("connection refused")}
	arc := &memArchive{}
	svc := NewService(cat, WithArchive(arc))
	ctx := context.Background()

	p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, p.BatchID)
	require.Error(t, err)
	assert.Equal(t, "DB004", MapError(err).Code)
	assert.Empty(t, arc.keys)

	kept, err := svc.Batch(p.BatchID)
	require.NoError(t, err)
	assert.Equal(t, p.Result.Rows(), kept.Result.Rows())

	cat.mu.Lock()
	cat.err = nil
	cat.mu.Unlock()

	outcome, err := svc.Submit(ctx, p.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Accepted)
	assert.Equal(t, 2, cat.callCount())
}

func TestService_RejectsConcurrentSubmissionOfSameBatch(t *testing.T) {
	cat := &fakeCatalog{release: make(chan struct{}), started: make(chan struct{})}
	svc := NewService(cat)
	ctx := context.Background()

	p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, p.BatchID)
		done <- err
	}()

	select {
	case <-cat.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the catalog")
	}

	_, err = svc.Submit(ctx, p.BatchID)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(cat.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, cat.callCount())
}

func TestService_SubmitsBatchOnceUnderContention(t *testing.T) {
	cat := &fakeCatalog{}
	svc := NewService(cat)
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Submit(ctx, p.BatchID)
				switch {
				case err == nil:
					mu.Lock()
					successes++
					mu.Unlock()
				case errors.Is(err, ErrSubmissionInProgress), errors.Is(err, ErrBatchNotFound):
				default:
					t.Errorf("Submit: unexpected error %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes, "round %d", round)
		assert.Equal(t, round+1, cat.callCount(), "round %d", round)
	}
}

func TestService_DiscardAndExpiry(t *testing.T) {
	svc := NewService(&fakeCatalog{}, WithBatchTTL(20*time.Millisecond))
	ctx := context.Background()

	p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)
	require.NoError(t, svc.Discard(p.BatchID))
	assert.ErrorIs(t, svc.Discard(p.BatchID), ErrBatchNotFound)

	p, err = svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := svc.Batch(p.BatchID)
		return errors.Is(err, ErrBatchNotFound)
	}, time.Second, 5*time.Millisecond)
}

func TestService_ArchiveFailureDoesNotFailImport(t *testing.T) {
	arc := &memArchive{err: errors.New("disk full")}
	svc := NewService(&fakeCatalog{}, WithArchive(arc))
	ctx := context.Background()

	p, err := svc.Preview(ctx, "menu.csv", []byte(mixedCSV))
	require.NoError(t, err)

	outcome, err := svc.Submit(ctx, p.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Accepted)
	assert.Len(t, arc.keys, 1)
}

func TestService_LimiterBusy(t *testing.T) {
	limiter := NewLimiter(1, 10*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	cat := &fakeCatalog{}
	svc := NewService(cat, WithLimiter(limiter))

	_, err := svc.SubmitResult(context.Background(), "b1", catalog.ParseDocument(mixedCSV))
	assert.ErrorIs(t, err, ErrTooManyUploads)
	assert.Equal(t, 0, cat.callCount())
	assert.Equal(t, 1, svc.LimiterStatus().Active)
}
