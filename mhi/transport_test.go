package mhi

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedPort feeds one canned answer per written frame.
type scriptedPort struct {
	answers [][]byte
	pending []byte
	writes  int
	closed  bool
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.writes++
	if len(p.answers) > 0 {
		p.pending = p.answers[0]
		p.answers = p.answers[1:]
	} else {
		p.pending = nil
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	b[0] = p.pending[0]
	p.pending = p.pending[1:]
	return 1, nil
}

func (p *scriptedPort) Close() error {
	p.closed = true
	return nil
}

func newScriptedTransport(answers ...[]byte) (*SerialTransport, *scriptedPort) {
	port := &scriptedPort{answers: answers}
	tr := NewSerialTransport(SerialOptions{
		Port:       "testport",
		Timeout:    50 * time.Millisecond,
		RetryDelay: time.Millisecond,
	})
	tr.port = port
	return tr, port
}

func TestSendNakThenAck(t *testing.T) {
	tr, port := newScriptedTransport(
		[]byte{nak},
		[]byte{nak},
		[]byte{stx, '0', etx, ack},
	)

	resp, err := tr.Send(context.Background(), "test", buildFrame(cmdPrinterState))
	if err != nil {
		t.Fatalf("Send after transient NAKs: %v", err)
	}
	if classify(resp) != respAck {
		t.Errorf("response % X not an ack", resp)
	}
	if port.writes != 3 {
		t.Errorf("frame written %d times, want 3", port.writes)
	}
}

func TestSendPersistentNak(t *testing.T) {
	tr, port := newScriptedTransport(
		[]byte{nak},
		[]byte{nak},
		[]byte{nak},
	)

	_, err := tr.Send(context.Background(), "test", buildFrame(cmdPrinterState))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type %T", err)
	}
	if te.Kind != TransportRejected {
		t.Errorf("kind %v, want rejected", te.Kind)
	}
	if te.Attempts != 3 {
		t.Errorf("attempts %d, want 3", te.Attempts)
	}
	if port.writes != 3 {
		t.Errorf("frame written %d times, want 3", port.writes)
	}
}

func TestSendSilenceIsTimeout(t *testing.T) {
	tr, _ := newScriptedTransport() // no answers at all
	tr.maxRetries = 0

	_, err := tr.Send(context.Background(), "test", buildFrame(cmdPrinterState))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type %T", err)
	}
	if te.Kind != TransportTimeout {
		t.Errorf("kind %v, want timeout", te.Kind)
	}
	if !errIsTimeout(err) {
		t.Error("errIsTimeout = false")
	}
}

func TestSendHonorsContextCancellation(t *testing.T) {
	tr, port := newScriptedTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, "test", buildFrame(cmdPrinterState))
	if err == nil {
		t.Fatal("Send succeeded with a cancelled context")
	}
	if port.writes != 0 {
		t.Errorf("frame written %d times after cancellation", port.writes)
	}
}

func TestTerminated(t *testing.T) {
	tests := []struct {
		data []byte
		want bool
	}{
		{[]byte{ack}, true},
		{[]byte{nak}, true},
		{[]byte{bel, bel, ack}, true},
		{[]byte{stx, '1', etx, ack}, true},
		{[]byte{stx, '1', etx}, false},
		{[]byte{stx, '1', ack}, false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := terminated(tc.data); got != tc.want {
			t.Errorf("terminated(% X) = %v, want %v", tc.data, got, tc.want)
		}
	}
}
