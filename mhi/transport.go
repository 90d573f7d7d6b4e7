package mhi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.bug.st/serial"
)

// Transport moves one framed command to the printer and returns the raw
// answer. Implementations own the retry policy; the driver guarantees a
// single in-flight command per session.
type Transport interface {
	// Send writes a frame and blocks for the answer. The returned bytes
	// are the raw answer including terminator. The error, if any, is a
	// *TransportError.
	Send(ctx context.Context, op string, frame []byte) ([]byte, error)

	// Close releases the underlying port.
	Close() error
}

// SerialTransport exchanges frames over a serial line with bounded
// retries. NAK and malformed answers are retried after a fixed short
// delay; a timeout on the final attempt surfaces as TransportTimeout.
type SerialTransport struct {
	portName   string
	baudRate   int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     func(string)

	port io.ReadWriteCloser
}

// SerialOptions carries the wire-level settings for a SerialTransport.
type SerialOptions struct {
	Port       string
	BaudRate   int           // default 9600
	Timeout    time.Duration // per-command answer timeout, default 5s
	MaxRetries int           // retries after the first attempt, default 2
	RetryDelay time.Duration // fixed delay between attempts, default 200ms
	Logger     func(string)
}

func (o *SerialOptions) fillDefaults() {
	if o.BaudRate == 0 {
		o.BaudRate = defaultBaudRate
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = defaultRetryDelay
	}
}

// NewSerialTransport creates a transport bound to a serial port name.
// The port is opened lazily on the first Send.
func NewSerialTransport(opts SerialOptions) *SerialTransport {
	opts.fillDefaults()
	return &SerialTransport{
		portName:   opts.Port,
		baudRate:   opts.BaudRate,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
}

func (t *SerialTransport) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger(fmt.Sprintf(format, args...))
	}
}

func (t *SerialTransport) open() error {
	if t.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(t.portName, mode)
	if err != nil {
		return fmt.Errorf("mhi: cannot open %s: %w", t.portName, err)
	}
	port.SetReadTimeout(100 * time.Millisecond)
	t.port = port
	return nil
}

// Close implements Transport.
func (t *SerialTransport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// Send implements Transport. One Send is one logical command regardless
// of how many wire attempts were needed.
func (t *SerialTransport) Send(ctx context.Context, op string, frame []byte) ([]byte, error) {
	attempts := t.maxRetries + 1
	var last *TransportError

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Op: op, Kind: TransportTimeout, Attempts: attempt - 1, Err: err}
		}
		if err := t.open(); err != nil {
			last = &TransportError{Op: op, Kind: TransportTimeout, Attempts: attempt, Err: err}
			time.Sleep(t.retryDelay)
			continue
		}

		resp, err := t.exchange(ctx, frame)
		if err != nil {
			last = &TransportError{Op: op, Kind: TransportTimeout, Attempts: attempt, Err: err}
			t.logf("TX %q attempt %d/%d: %v", op, attempt, attempts, err)
			// A dead port is reopened on the next attempt.
			t.Close()
			time.Sleep(t.retryDelay)
			continue
		}

		switch classify(resp) {
		case respAck:
			return resp, nil
		case respNak:
			last = &TransportError{Op: op, Kind: TransportRejected, Attempts: attempt, Response: resp}
			t.logf("TX %q attempt %d/%d: NAK", op, attempt, attempts)
		case respMalformed:
			last = &TransportError{Op: op, Kind: TransportMalformed, Attempts: attempt, Response: resp}
			t.logf("TX %q attempt %d/%d: malformed answer % X", op, attempt, attempts, resp)
		}
		if attempt < attempts {
			time.Sleep(t.retryDelay)
		}
	}
	return nil, last
}

// exchange performs one write/read cycle on the open port.
func (t *SerialTransport) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if t.port == nil {
		return nil, ErrPortClosed
	}
	if _, err := t.port.Write(frame); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	buf := make([]byte, 1)
	answer := make([]byte, 0, 256)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		answer = append(answer, buf[0])
		if terminated(answer) {
			return answer, nil
		}
	}
	if len(answer) == 0 {
		return nil, ErrEmptyResponse
	}
	return nil, fmt.Errorf("mhi: incomplete answer % X", answer)
}

// terminated reports whether the accumulated bytes form a complete answer.
func terminated(data []byte) bool {
	n := len(data)
	if n == 0 {
		return false
	}
	if data[n-1] == nak {
		return true
	}
	if data[n-1] == ack {
		// Either bare ACK (possibly after BELs) or ETX ACK tail.
		if n == 1 || data[n-2] == etx {
			return true
		}
		bare := true
		for _, b := range data[:n-1] {
			if b != bel {
				bare = false
				break
			}
		}
		return bare
	}
	return false
}

// DiscoverPort scans the available serial ports for a printer answering
// the identification command. The configured port, when set, is probed
// first; remaining ports are probed in reverse enumeration order, which
// favours USB adapters on most systems. Returns ErrPortNotFound when no
// port answers.
func DiscoverPort(ctx context.Context, opts SerialOptions) (string, error) {
	opts.fillDefaults()

	if opts.Port != "" {
		if probePort(ctx, opts.Port, opts) {
			return opts.Port, nil
		}
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("mhi: cannot enumerate serial ports: %w", err)
	}
	if len(names) == 0 {
		return "", ErrPortNotFound
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		if name == opts.Port {
			continue // already probed
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if probePort(ctx, name, opts) {
			return name, nil
		}
	}
	return "", ErrPortNotFound
}

// probePort sends the identification command to one port and reports
// whether a well-formed acknowledgement came back. Probing never retries:
// silence means not our printer.
func probePort(ctx context.Context, name string, opts SerialOptions) bool {
	probe := NewSerialTransport(SerialOptions{
		Port:     name,
		BaudRate: opts.BaudRate,
		Timeout:  opts.Timeout,
		Logger:   opts.Logger,
	})
	probe.maxRetries = 0 // silence means not our printer, never retry a probe
	defer probe.Close()

	resp, err := probe.Send(ctx, "identify", buildFrame(cmdIdentify))
	if err != nil {
		return false
	}
	return classify(resp) == respAck
}

var _ Transport = (*SerialTransport)(nil)

// errIsTimeout reports whether err is a transport timeout, used by the
// driver to decide that the session is unusable.
func errIsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportTimeout
}
