package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/model"
)

type stubFetcher struct {
	calls   int
	results []error
	batch   model.SnapshotBatch
}

func (f *stubFetcher) FetchTopAssets(ctx context.Context) (model.SnapshotBatch, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) && f.results[idx] != nil {
		return model.SnapshotBatch{}, f.results[idx]
	}
	return f.batch, nil
}

type stubSink struct {
	writes  int
	batches []model.SnapshotBatch
	err     error
}

func (s *stubSink) Write(ctx context.Context, batch model.SnapshotBatch) error {
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *stubSink) Close() error { return nil }

func testBatch(n int) model.SnapshotBatch {
	now := time.Now().UTC()
	assets := make([]model.AssetSnapshot, 0, n)
	for i := 0; i < n; i++ {
		assets = append(assets, model.AssetSnapshot{
			Rank:         i + 1,
			Symbol:       "BTC",
			Name:         "Bitcoin",
			PriceUSD:     decimal.NewFromInt(65000),
			MarketCapUSD: decimal.NewFromInt(1),
			Volume24hUSD: decimal.NewFromInt(1),
			FetchedAt:    now,
		})
	}
	return model.SnapshotBatch{Assets: assets, FetchedAt: now}
}

func newTestService(f fetcher.SnapshotFetcher, s *stubSink, attempts int, exponential bool) (*Service, *[]time.Duration) {
	cfg := &config.Config{
		Retry: config.RetryConfig{
			MaxAttempts: attempts,
			Backoff:     5 * time.Millisecond,
			Exponential: exponential,
		},
	}
	svc := New(cfg, nil, f, s, zerolog.Nop())

	waits := &[]time.Duration{}
	svc.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return svc, waits
}

func TestProcessCycleSuccess(t *testing.T) {
	f := &stubFetcher{batch: testBatch(50)}
	s := &stubSink{}
	svc, _ := newTestService(f, s, 3, false)

	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("成功周期不应报错: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("期望 1 次抓取, 实际 %d", f.calls)
	}
	if s.writes != 1 {
		t.Fatalf("sink 应恰好写入一次, 实际 %d", s.writes)
	}
	if s.batches[0].Len() != 50 {
		t.Fatalf("批次应完整传递, 实际 %d 条", s.batches[0].Len())
	}
}

func TestProcessCycleRetriesThenSucceeds(t *testing.T) {
	transient := &fetcher.ProviderError{StatusCode: 502}
	f := &stubFetcher{batch: testBatch(3), results: []error{transient, transient, nil}}
	s := &stubSink{}
	svc, waits := newTestService(f, s, 3, false)

	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("第三次成功时周期应成功: %v", err)
	}
	if f.calls != 3 {
		t.Fatalf("期望 3 次抓取, 实际 %d", f.calls)
	}
	if len(*waits) != 2 {
		t.Fatalf("两次失败之间应各等待一次, 实际 %d", len(*waits))
	}
	if s.writes != 1 {
		t.Fatalf("sink 应写入一次, 实际 %d", s.writes)
	}
}

func TestProcessCycleRetriesExhausted(t *testing.T) {
	transient := &fetcher.ProviderError{StatusCode: 502}
	f := &stubFetcher{results: []error{transient, transient, transient}}
	s := &stubSink{}
	svc, _ := newTestService(f, s, 3, false)

	err := svc.ProcessCycle(context.Background(), time.Now())
	if err == nil {
		t.Fatal("重试耗尽应返回错误")
	}
	if f.calls != 3 {
		t.Fatalf("期望 3 次抓取, 实际 %d", f.calls)
	}
	if s.writes != 0 {
		t.Fatalf("重试耗尽时 sink 不应被调用, 实际 %d", s.writes)
	}
}

func TestProcessCycleNonRetryableAbortsImmediately(t *testing.T) {
	permanent := &fetcher.ProviderError{StatusCode: 400}
	f := &stubFetcher{results: []error{permanent}}
	s := &stubSink{}
	svc, waits := newTestService(f, s, 3, false)

	err := svc.ProcessCycle(context.Background(), time.Now())
	if err == nil {
		t.Fatal("永久错误应直接失败")
	}
	if f.calls != 1 {
		t.Fatalf("永久错误不应重试, 实际 %d 次抓取", f.calls)
	}
	if len(*waits) != 0 {
		t.Fatal("永久错误不应等待重试")
	}
	if s.writes != 0 {
		t.Fatal("sink 不应被调用")
	}
}

func TestExponentialBackoffDoubles(t *testing.T) {
	transient := errors.New("connection reset")
	f := &stubFetcher{batch: testBatch(1), results: []error{transient, transient, nil}}
	svc, waits := newTestService(f, &stubSink{}, 3, true)

	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("周期应成功: %v", err)
	}
	if len(*waits) != 2 {
		t.Fatalf("期望 2 次等待, 实际 %d", len(*waits))
	}
	if (*waits)[1] != 2*(*waits)[0] {
		t.Fatalf("指数退避应翻倍: %v", *waits)
	}
}

func TestSinkFailureDoesNotStopNextCycle(t *testing.T) {
	f := &stubFetcher{batch: testBatch(2)}
	s := &stubSink{err: errors.New("file locked by viewer")}
	svc, _ := newTestService(f, s, 3, false)

	if err := svc.ProcessCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("sink 写入失败应返回错误")
	}

	s.err = nil
	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("下一周期应正常执行: %v", err)
	}
	if f.calls != 2 {
		t.Fatalf("两个周期应各抓取一次, 实际 %d", f.calls)
	}
	if s.writes != 2 {
		t.Fatalf("期望 2 次写入尝试, 实际 %d", s.writes)
	}
}

func TestEmptyBatchSkipsSink(t *testing.T) {
	f := &stubFetcher{batch: model.SnapshotBatch{FetchedAt: time.Now()}}
	s := &stubSink{}
	svc, _ := newTestService(f, s, 3, false)

	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("空批次不应报错: %v", err)
	}
	if s.writes != 0 {
		t.Fatal("空批次不应写入 sink")
	}
}

func TestRetryWaitHonoursCancellation(t *testing.T) {
	transient := &fetcher.ProviderError{StatusCode: 502}
	f := &stubFetcher{results: []error{transient, transient, transient}}
	svc, _ := newTestService(f, &stubSink{}, 3, false)

	ctx, cancel := context.WithCancel(context.Background())
	svc.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := svc.ProcessCycle(ctx, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("取消应中止重试等待: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("取消后不应再抓取, 实际 %d", f.calls)
	}
}
