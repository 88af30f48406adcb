package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"print-service/internal/model"
)

// fakeTransport records writes and lets tests feed inbound bytes, drain
// notifications and faults.
type fakeTransport struct {
	mu      sync.Mutex
	writes  [][]byte
	accept  func(n int) bool // nth write -> drain return
	closed  int
	data    chan []byte
	drained chan struct{}
	errs    chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		data:    make(chan []byte, 16),
		drained: make(chan struct{}, 1),
		errs:    make(chan error, 1),
	}
}

func (f *fakeTransport) Open(context.Context) error { return nil }

func (f *fakeTransport) Write(p []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	f.writes = append(f.writes, cp)
	if f.accept != nil {
		return f.accept(len(f.writes))
	}
	return true
}

func (f *fakeTransport) Data() <-chan []byte      { return f.data }
func (f *fakeTransport) Drained() <-chan struct{} { return f.drained }
func (f *fakeTransport) Errors() <-chan error     { return f.errs }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTransport) writtenAt(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 {
		i += len(f.writes)
	}
	return f.writes[i]
}

func testConfig() Config {
	return Config{
		RecoveryWindow: 40 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		OfflineCeiling: 100 * time.Millisecond,
		DetailWindow:   50 * time.Millisecond,
	}
}

func runSession(t *testing.T, family model.PrinterFamily, cfg Config, inq Inquiry, job []byte, tr *fakeTransport) model.ResultCode {
	t.Helper()
	dec, err := NewDecoder(family)
	require.NoError(t, err)
	eng := NewEngine(cfg, dec, tr, inq, job, zap.NewNop())

	done := make(chan model.ResultCode, 1)
	go func() { done <- eng.Run(context.Background()) }()

	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("session did not resolve")
		return ""
	}
}

// Clean handshake/status bytes per family, used to walk sessions forward.
var (
	escposOKHandshake = []byte{0x12}
	escposOKFrame     = []byte{0x10, 0x00, 0x00, 0x00}
	siiOKFrame        = []byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	siiDoneStatus     = []byte{0x80}
	starOKFrame       = []byte{0x0F, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

func TestCoverOpenAtHandshake(t *testing.T) {
	cases := []struct {
		family model.PrinterFamily
		feed   []byte
	}{
		{model.FamilyESCPOS, []byte{0x16}},
		{model.FamilySII, []byte{0xC2, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{model.FamilyStar, []byte{0x0F, 0x00, 0x20, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		t.Run(string(c.family), func(t *testing.T) {
			tr := newFakeTransport()
			tr.data <- c.feed
			code := runSession(t, c.family, testConfig(), Inquiry{}, []byte("job"), tr)
			assert.Equal(t, model.ResultCoverOpen, code)
			assert.Equal(t, 1, tr.closed)

			// Closure is final: nothing else goes out.
			writes := tr.writeCount()
			time.Sleep(80 * time.Millisecond)
			assert.Equal(t, writes, tr.writeCount())
		})
	}
}

func TestPaperEmptyViaAutomaticStatus(t *testing.T) {
	t.Run("escpos", func(t *testing.T) {
		tr := newFakeTransport()
		tr.data <- escposOKHandshake
		tr.data <- []byte{0x10, 0x00, 0x0C, 0x00}
		// The clean handshake advances to StatusReady; the fault frame is the
		// first ASB frame, so it resolves before any job write.
		code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
		assert.Equal(t, model.ResultPaperEmpty, code)
	})
	t.Run("sii", func(t *testing.T) {
		tr := newFakeTransport()
		tr.data <- []byte{0xC0, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
		code := runSession(t, model.FamilySII, testConfig(), Inquiry{}, []byte("job"), tr)
		assert.Equal(t, model.ResultPaperEmpty, code)
	})
	t.Run("star", func(t *testing.T) {
		tr := newFakeTransport()
		tr.data <- []byte{0x0F, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00}
		code := runSession(t, model.FamilyStar, testConfig(), Inquiry{}, []byte("job"), tr)
		assert.Equal(t, model.ResultPaperEmpty, code)
	})
}

func TestRecoveryRetransmitThenOffline(t *testing.T) {
	tr := newFakeTransport()
	start := time.Now()
	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
	elapsed := time.Since(start)

	assert.Equal(t, model.ResultOffline, code)
	// Silence for the recovery window, then the offline ceiling on top.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// First write is the hello, later ones are flush-prefixed enables.
	require.GreaterOrEqual(t, tr.writeCount(), 2)
	assert.Equal(t, escposCommands.StatusRequest, tr.writtenAt(0))
	retransmit := tr.writtenAt(1)
	require.Len(t, retransmit, recoveryFlushSize+len(escposCommands.EnableASB))
	assert.Equal(t, make([]byte, recoveryFlushSize), retransmit[:recoveryFlushSize])
	assert.Equal(t, escposCommands.EnableASB, retransmit[recoveryFlushSize:])
}

func TestRecoveryRetransmitGatedOnDrain(t *testing.T) {
	tr := newFakeTransport()
	// Every write reports backpressure; no retransmit may follow the hello.
	tr.accept = func(int) bool { return false }
	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)

	assert.Equal(t, model.ResultOffline, code)
	assert.Equal(t, 1, tr.writeCount())
}

func TestPrintDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 80 * time.Millisecond

	tr := newFakeTransport()
	tr.data <- escposOKHandshake
	tr.data <- escposOKFrame

	start := time.Now()
	code := runSession(t, model.FamilyESCPOS, cfg, Inquiry{}, []byte("receipt bytes"), tr)

	assert.Equal(t, model.ResultTimeout, code)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	// hello, enable, then the job.
	require.Equal(t, 3, tr.writeCount())
	assert.Equal(t, []byte("receipt bytes"), tr.writtenAt(2))
}

func TestStatusOnlyResolvesOnlineWithoutJob(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- escposOKHandshake
	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{StatusOnly: true}, []byte("never sent"), tr)

	assert.Equal(t, model.ResultOnline, code)
	require.Equal(t, 1, tr.writeCount())
	assert.Equal(t, escposCommands.StatusRequest, tr.writtenAt(0))
}

func TestStarPrintToSuccess(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- starOKFrame // handshake answer
	tr.data <- starOKFrame // first ASB frame -> job goes out
	tr.data <- starOKFrame // ASB frame while printing -> done

	job := append(append([]byte{0x1B, 0x40}, []byte("STAR")...), 0x1B, 0x06, 0x01)
	code := runSession(t, model.FamilyStar, testConfig(), Inquiry{}, job, tr)

	assert.Equal(t, model.ResultSuccess, code)
	require.Equal(t, 3, tr.writeCount())
	assert.Equal(t, starCommands.StatusRequest, tr.writtenAt(0))
	assert.Equal(t, starCommands.EnableASB, tr.writtenAt(1))
	// Leading initialize rewritten, trailing status request stripped.
	want := append(append([]byte{}, starCommands.ResetBegin...), []byte("STAR")...)
	assert.Equal(t, want, tr.writtenAt(2))
}

func TestSIIPrintToSuccess(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- siiOKFrame
	tr.data <- siiDoneStatus

	job := append(append([]byte{}, siiCommands.Reset...), []byte("RECEIPT")...)
	code := runSession(t, model.FamilySII, testConfig(), Inquiry{}, job, tr)

	assert.Equal(t, model.ResultSuccess, code)
	// Reset hello, enable, then the job with its duplicate reset stripped.
	require.Equal(t, 3, tr.writeCount())
	assert.Equal(t, siiCommands.Reset, tr.writtenAt(0))
	assert.Equal(t, siiCommands.EnableASB, tr.writtenAt(1))
	assert.Equal(t, []byte("RECEIPT"), tr.writtenAt(2))
}

func TestEscposFragmentedFrames(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- escposOKHandshake
	// ASB frame split across three chunks.
	tr.data <- []byte{0x10}
	tr.data <- []byte{0x00, 0x00}
	tr.data <- []byte{0x00}
	tr.data <- []byte{0x12} // completion echo while printing

	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
	assert.Equal(t, model.ResultSuccess, code)
}

func TestEscposBlockDataSkipped(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- escposOKHandshake
	// Block-data run (header nibble 0x3, terminated by NUL) interleaved
	// before the clean ASB frame.
	tr.data <- append([]byte{0x35, 0xAA, 0xBB, 0x00}, escposOKFrame...)
	tr.data <- []byte{0x12}

	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
	assert.Equal(t, model.ResultSuccess, code)
}

func TestEscposErrorDetailTimeout(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- []byte{0x52} // handshake answer with the error bit set

	start := time.Now()
	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)

	assert.Equal(t, model.ResultError, code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	// hello then the detail request.
	require.Equal(t, 2, tr.writeCount())
	assert.Equal(t, escposCommands.DetailRequest, tr.writtenAt(1))
}

func TestEscposErrorDetailArrival(t *testing.T) {
	tr := newFakeTransport()
	tr.data <- []byte{0x52}
	tr.data <- []byte{0x00} // detail payload; content is not interpreted

	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
	assert.Equal(t, model.ResultError, code)
}

func TestDrawerInquiry(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		tr := newFakeTransport()
		tr.data <- []byte{0x16}
		code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{StatusOnly: true, Drawer: true}, nil, tr)
		assert.Equal(t, model.ResultDrawerOpen, code)
		assert.Equal(t, escposCommands.DrawerRequest, tr.writtenAt(0))
	})
	t.Run("closed", func(t *testing.T) {
		tr := newFakeTransport()
		tr.data <- []byte{0x12}
		code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{StatusOnly: true, Drawer: true}, nil, tr)
		assert.Equal(t, model.ResultDrawerClosed, code)
	})
}

func TestTransportFaultResolvesDisconnect(t *testing.T) {
	tr := newFakeTransport()
	tr.errs <- errors.New("connection reset by peer")
	code := runSession(t, model.FamilyESCPOS, testConfig(), Inquiry{}, []byte("job"), tr)
	assert.Equal(t, model.ResultDisconnect, code)
	assert.Equal(t, 1, tr.closed)
}

func TestCompletionWaitsForDrain(t *testing.T) {
	tr := newFakeTransport()
	// Accept the hello and the enable; the job write reports backpressure.
	tr.accept = func(n int) bool { return n < 3 }
	tr.data <- escposOKHandshake
	tr.data <- escposOKFrame

	dec, err := NewDecoder(model.FamilyESCPOS)
	require.NoError(t, err)
	eng := NewEngine(testConfig(), dec, tr, Inquiry{}, bytes.Repeat([]byte{0x20}, 64), zap.NewNop())

	done := make(chan model.ResultCode, 1)
	go func() { done <- eng.Run(context.Background()) }()

	// Completion echo arrives before the queue empties; the session must
	// hold until the drain notification.
	time.Sleep(30 * time.Millisecond)
	tr.data <- []byte{0x12}

	select {
	case code := <-done:
		t.Fatalf("resolved %s before drain", code)
	case <-time.After(60 * time.Millisecond):
	}

	tr.drained <- struct{}{}
	select {
	case code := <-done:
		assert.Equal(t, model.ResultSuccess, code)
	case <-time.After(2 * time.Second):
		t.Fatal("no resolution after drain")
	}
}

func TestContextCancelResolvesDisconnect(t *testing.T) {
	tr := newFakeTransport()
	dec, err := NewDecoder(model.FamilyESCPOS)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.OfflineCeiling = 10 * time.Second
	eng := NewEngine(cfg, dec, tr, Inquiry{}, []byte("job"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan model.ResultCode, 1)
	go func() { done <- eng.Run(ctx) }()
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, model.ResultDisconnect, code)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not resolve the session")
	}
}

func TestNewDecoderUnknownFamily(t *testing.T) {
	_, err := NewDecoder(model.PrinterFamily("dotmatrix"))
	assert.Error(t, err)
}
