package printer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/metrics"
)

func sampleReceipt() billing.Receipt {
	entry := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return billing.Receipt{
		SessionID:       "0f8c2a4e-1b7d-4c3e-9a61-7d2e5bc41a9f",
		Token:           "JET-ABC-001",
		Currency:        "UZS",
		EntryTime:       entry,
		PaidUntil:       entry.Add(time.Hour),
		ExitTime:        entry.Add(75 * time.Minute),
		IncludedMinutes: 60,
		ExtraMinutes:    15,
		BaseAmount:      50000,
		ExtraFee:        4200,
		Total:           54200,
		PrintedAt:       entry.Add(76 * time.Minute),
	}
}

func TestRender(t *testing.T) {
	text, err := Renderer{Title: "FUN ZONE", Location: time.UTC}.Render(sampleReceipt())
	require.NoError(t, err)

	assert.Contains(t, text, "FUN ZONE")
	assert.Contains(t, text, "Customer ID: C41A9F")
	assert.Contains(t, text, "Token: JET-ABC-001")
	assert.Contains(t, text, "Entry: 14/03/26, 10:00")
	assert.Contains(t, text, "Exit:  14/03/26, 11:15")
	assert.Contains(t, text, "Duration: 75 min")
	assert.Contains(t, text, "Base (60 min): 50 000 UZS")
	assert.Contains(t, text, "Extra: 4 200 UZS")
	assert.Contains(t, text, "TOTAL: 54 200 UZS")
	assert.Contains(t, text, "Printed: 14/03/26, 11:16")
}

func TestRender_Defaults(t *testing.T) {
	r := sampleReceipt()
	r.Token = ""

	text, err := Renderer{}.Render(r)
	require.NoError(t, err)
	assert.Contains(t, text, DefaultTitle)
	assert.Contains(t, text, "Token: -")
}

func TestRender_ExtendedSessionShowsIncludedMinutes(t *testing.T) {
	r := sampleReceipt()
	r.IncludedMinutes = 90
	r.BaseAmount = 75000

	text, err := Renderer{Location: time.UTC}.Render(r)
	require.NoError(t, err)
	assert.Contains(t, text, "Base (90 min): 75 000 UZS")
	assert.NotContains(t, text, "1 hour")

	r.IncludedMinutes = 0
	text, err = Renderer{Location: time.UTC}.Render(r)
	require.NoError(t, err)
	assert.Contains(t, text, "Base: 75 000 UZS")
}

func TestSpool_RenderErrorWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "receipts")
	broken := template.Must(template.New("broken").Parse("{{.NoSuchField}}"))
	s := NewSpool(dir, "", Renderer{Template: broken})

	err := s.Print(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render receipt")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no receipt file may be written")
}

func TestFormatMoney(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1 000",
		54200:   "54 200",
		1250000: "1 250 000",
		-4200:   "-4 200",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatMoney(in), "formatMoney(%d)", in)
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "C41A9F", ShortID("0f8c2a4e-1b7d-4c3e-9a61-7d2e5bc41a9f"))
	assert.Equal(t, "ABC", ShortID("abc"))
}

func TestSpool_Write(t *testing.T) {
	dir := t.TempDir()
	s := NewSpool(filepath.Join(dir, "receipts"), "", Renderer{Location: time.UTC})

	require.NoError(t, s.Print(context.Background(), sampleReceipt()))

	files, err := os.ReadDir(filepath.Join(dir, "receipts"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "receipt_0f8c2a4e"))

	content, err := os.ReadFile(filepath.Join(dir, "receipts", files[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "TOTAL: 54 200 UZS")
}

func TestSpool_Command(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("print command test requires a POSIX shell environment")
	}

	ok := NewSpool(t.TempDir(), "true", Renderer{})
	assert.NoError(t, ok.Print(context.Background(), sampleReceipt()))

	failing := NewSpool(t.TempDir(), "false", Renderer{})
	err := failing.Print(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run print command")
}

type busyError struct{ delay time.Duration }

func (e busyError) Error() string             { return "busy" }
func (e busyError) RetryAfter() time.Duration { return e.delay }

type fakePrinter struct {
	mu      sync.Mutex
	calls   int
	fail    int
	err     error
	printed chan billing.Receipt
}

func (p *fakePrinter) Print(ctx context.Context, r billing.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.fail {
		return p.err
	}
	p.printed <- r
	return nil
}

func TestQueue_RetriesAndPrints(t *testing.T) {
	p := &fakePrinter{fail: 1, err: busyError{delay: time.Millisecond}, printed: make(chan billing.Receipt, 1)}
	m := metrics.New()
	q := NewQueue(p, 4, zap.NewNop(), m)
	q.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Publish(sampleReceipt()))

	select {
	case r := <-p.printed:
		assert.Equal(t, "0f8c2a4e-1b7d-4c3e-9a61-7d2e5bc41a9f", r.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatalf("receipt was not printed")
	}

	cancel()
	<-done

	p.mu.Lock()
	assert.Equal(t, 2, p.calls)
	p.mu.Unlock()
}

func TestQueue_GivesUp(t *testing.T) {
	p := &fakePrinter{fail: 100, err: errors.New("paper jam"), printed: make(chan billing.Receipt, 1)}
	q := NewQueue(p, 1, nil, nil)
	q.backoff = time.Millisecond

	q.print(context.Background(), sampleReceipt())

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, q.attempts, p.calls)
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(&fakePrinter{}, 1, nil, nil)

	require.NoError(t, q.Publish(sampleReceipt()))
	assert.ErrorIs(t, q.Publish(sampleReceipt()), ErrQueueFull)
}

func TestQueue_DrainsOnShutdown(t *testing.T) {
	p := &fakePrinter{printed: make(chan billing.Receipt, 3)}
	q := NewQueue(p, 3, zap.NewNop(), nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(sampleReceipt()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))

	assert.Len(t, p.printed, 3)
	assert.Zero(t, len(q.jobs))
}

func TestQueue_LogsDroppedAfterDrainTimeout(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := &fakePrinter{fail: 100, err: errors.New("printer offline"), printed: make(chan billing.Receipt, 1)}
	q := NewQueue(p, 3, zap.New(core), nil)
	q.backoff = time.Hour
	q.drainFor = 20 * time.Millisecond

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(sampleReceipt()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))

	p.mu.Lock()
	assert.Equal(t, 1, p.calls)
	p.mu.Unlock()

	entries := logs.FilterMessage("print queue stopped with unprinted receipts").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["dropped"])
}
