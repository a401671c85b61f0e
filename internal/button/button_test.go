package button

import (
	"errors"
	"io"
	"testing"

	"github.com/warthog618/go-gpiocdev"

	"cardsync/internal/config"
)

type fakeLine struct {
	closed int
}

func (f *fakeLine) Close() error {
	f.closed++
	return nil
}

type fakeRequester struct {
	chip    string
	offset  int
	opts    int
	handler gpiocdev.EventHandler
	line    *fakeLine
	err     error
}

func (f *fakeRequester) request(chip string, offset int, handler gpiocdev.EventHandler, opts ...gpiocdev.LineReqOption) (io.Closer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.chip = chip
	f.offset = offset
	f.opts = len(opts)
	f.handler = handler
	f.line = &fakeLine{}
	return f.line, nil
}

func TestOpenRequestsConfiguredLine(t *testing.T) {
	cfg := config.Default()
	req := &fakeRequester{}
	b, err := OpenWith(&cfg, nil, req.request)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if req.chip != "gpiochip0" || req.offset != 17 {
		t.Fatalf("unexpected line %s:%d", req.chip, req.offset)
	}
	// consumer, edge, bias, debounce
	if req.opts != 4 {
		t.Fatalf("expected 4 line options, got %d", req.opts)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if req.line.closed != 1 {
		t.Fatalf("expected line closed once, got %d", req.line.closed)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if req.line.closed != 1 {
		t.Fatal("second Close must not release the line again")
	}
}

func TestOpenWithoutDebounce(t *testing.T) {
	cfg := config.Default()
	cfg.GPIO.DebounceMillis = 0
	req := &fakeRequester{}
	if _, err := OpenWith(&cfg, nil, req.request); err != nil {
		t.Fatalf("open: %v", err)
	}
	if req.opts != 3 {
		t.Fatalf("expected debounce option omitted, got %d options", req.opts)
	}
}

func TestOpenPropagatesRequestError(t *testing.T) {
	cfg := config.Default()
	req := &fakeRequester{err: errors.New("device or resource busy")}
	if _, err := OpenWith(&cfg, nil, req.request); err == nil {
		t.Fatal("expected error when the line cannot be requested")
	}
}

func TestFallingEdgeDeliversPress(t *testing.T) {
	cfg := config.Default()
	req := &fakeRequester{}
	b, err := OpenWith(&cfg, nil, req.request)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	req.handler(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, LineSeqno: 1})
	select {
	case <-b.Presses():
		t.Fatal("rising edge must not produce a press")
	default:
	}

	req.handler(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, LineSeqno: 2})
	select {
	case press := <-b.Presses():
		if press.Seq != 2 || press.At.IsZero() {
			t.Fatalf("unexpected press: %+v", press)
		}
	default:
		t.Fatal("expected a press")
	}
}

func TestPressesDroppedWhileReaderBusy(t *testing.T) {
	cfg := config.Default()
	req := &fakeRequester{}
	b, err := OpenWith(&cfg, nil, req.request)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := range 3 {
		req.handler(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, LineSeqno: uint32(i + 1)})
	}
	if b.Dropped() != 2 {
		t.Fatalf("expected 2 dropped presses, got %d", b.Dropped())
	}
	if press := <-b.Presses(); press.Seq != 1 {
		t.Fatalf("expected first press kept, got %+v", press)
	}
}
