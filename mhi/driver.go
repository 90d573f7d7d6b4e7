package mhi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"printhub/fiscal"
)

// Brand is the identity of one MHI-family printer model. The three
// supported brands speak the same command set; only the identity data
// differs, so no per-brand driver exists.
type Brand struct {
	Name string
	// TaxRates is the pre-provisioned rate→slot table of the model as
	// shipped for this market. Keys are normalized by New.
	TaxRates map[string]string
}

var (
	BrandCTS310II = Brand{
		Name:     "cts310ii",
		TaxRates: map[string]string{"6.00": "1", "7.00": "2", "9.00": "3"},
	}
	BrandStar = Brand{
		Name:     "star",
		TaxRates: map[string]string{"6.00": "1", "7.00": "2", "9.00": "3"},
	}
	BrandCitizen = Brand{
		Name:     "citizen",
		TaxRates: map[string]string{"6.00": "1", "7.00": "2", "9.00": "3"},
	}
)

// BrandByName resolves a configured brand name, case-insensitively.
func BrandByName(name string) (Brand, error) {
	switch strings.ToLower(name) {
	case BrandCTS310II.Name, "":
		return BrandCTS310II, nil
	case BrandStar.Name:
		return BrandStar, nil
	case BrandCitizen.Name:
		return BrandCitizen, nil
	}
	return Brand{}, &ConfigError{Field: "brand", Reason: fmt.Sprintf("unknown printer brand %q", name)}
}

// Config carries everything a driver session needs. It is immutable for
// the session lifetime; changing it requires reconnecting.
type Config struct {
	// Port is the serial port name; empty means auto-discover.
	Port       string
	BaudRate   int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Brand     Brand
	Numbering fiscal.Numbering
	// PaymentCodes maps upstream method names to printer codes; nil
	// selects the reference table of the MHI manual.
	PaymentCodes map[string]string

	// BranchID and TerminalID are printed in the document header.
	BranchID   string
	TerminalID string

	// SyncClock enables datetime synchronization on connect when the
	// printer clock drifts more than two minutes.
	SyncClock bool

	Logger func(string)
}

// Driver is the capability contract of one physical printer. At most one
// session exists per printer and all operations are serialized on it;
// every operation acquires the session lock and releases it on all exit
// paths.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect() error

	PrintDocument(ctx context.Context, tx *Transaction) (*Result, error)
	ReprintDocument(ctx context.Context, documentNumber string) (*Result, error)
	PrintNoSale(ctx context.Context, reason string) (*Result, error)

	PrintXReport(ctx context.Context) (*Result, error)
	// PrintZReport closes the fiscal day when closeDay is true; false
	// prints a copy of the pending Z without closing.
	PrintZReport(ctx context.Context, closeDay bool) (*Result, error)
	PrintZReportByDate(ctx context.Context, r DateRange) (*Result, error)
	PrintZReportByNumberRange(ctx context.Context, start, end int) (*Result, error)

	GetStatus(ctx context.Context) (*Status, error)
}

type driver struct {
	cfg      Config
	taxes    fiscal.TaxTable
	payments fiscal.PaymentCodes

	mu        sync.Mutex // session lock: one in-flight operation
	tr        Transport
	connected bool
	port      string
	state     DocumentState
}

// New creates a driver session around a serial transport. The transport
// is opened by Connect.
func New(cfg Config) (Driver, error) {
	return newDriver(cfg, nil)
}

// NewWithTransport creates a driver over an externally supplied
// transport. Used by tests and by the fake transport of debug mode.
func NewWithTransport(cfg Config, tr Transport) (Driver, error) {
	if tr == nil {
		return nil, &ConfigError{Field: "transport", Reason: "nil transport"}
	}
	return newDriver(cfg, tr)
}

func newDriver(cfg Config, tr Transport) (*driver, error) {
	if cfg.Brand.Name == "" {
		cfg.Brand = BrandCTS310II
	}
	if err := cfg.Numbering.Validate(); err != nil {
		return nil, &ConfigError{Field: "numbering", Reason: err.Error()}
	}
	taxes, err := fiscal.NewTaxTable(cfg.Brand.TaxRates)
	if err != nil {
		return nil, &ConfigError{Field: "brand.tax_rates", Reason: err.Error()}
	}
	if len(taxes) == 0 {
		return nil, &ConfigError{Field: "brand.tax_rates", Reason: "no tax rates provisioned"}
	}
	payments := fiscal.PaymentCodes(cfg.PaymentCodes)
	if payments == nil {
		payments = fiscal.ReferencePaymentCodes
	}
	if cfg.BranchID == "" {
		cfg.BranchID = "9001"
	}
	if cfg.TerminalID == "" {
		cfg.TerminalID = "1001"
	}
	return &driver{cfg: cfg, taxes: taxes, payments: payments, tr: tr, state: StateIdle}, nil
}

func (d *driver) logf(format string, args ...interface{}) {
	if d.cfg.Logger != nil {
		d.cfg.Logger(fmt.Sprintf(format, args...))
	}
}

// Connect locates the printer, opens the session and verifies the fiscal
// configuration. Configuration problems detected here (unprovisioned tax
// rates, blank fiscal identity) are fatal.
func (d *driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}

	if d.tr == nil {
		opts := SerialOptions{
			Port:       d.cfg.Port,
			BaudRate:   d.cfg.BaudRate,
			Timeout:    d.cfg.Timeout,
			MaxRetries: d.cfg.MaxRetries,
			RetryDelay: d.cfg.RetryDelay,
			Logger:     d.cfg.Logger,
		}
		port, err := DiscoverPort(ctx, opts)
		if err != nil {
			return err
		}
		opts.Port = port
		d.port = port
		d.tr = NewSerialTransport(opts)
		d.logf("printer %s found on %s", d.cfg.Brand.Name, port)
	} else {
		d.port = d.cfg.Port
		if _, err := d.tr.Send(ctx, "identify", buildFrame(cmdIdentify)); err != nil {
			return err
		}
	}

	if d.cfg.SyncClock {
		if err := d.syncDateTime(ctx); err != nil {
			// Drifted clocks degrade receipts but do not block printing.
			d.logf("datetime sync failed: %v", err)
		}
	}

	if err := d.verifyFiscalInfo(ctx); err != nil {
		d.tr.Close()
		d.tr = nil
		return err
	}

	d.connected = true
	d.state = StateIdle
	return nil
}

// verifyFiscalInfo reads the printer fiscal identity and checks that
// every configured tax rate is provisioned in the hardware table.
func (d *driver) verifyFiscalInfo(ctx context.Context) error {
	resp, err := d.tr.Send(ctx, "fiscal info", buildFrame(cmdFiscalInfo))
	if err != nil {
		return err
	}
	info, err := decodeFiscalInfo(resp)
	if err != nil {
		return err
	}
	d.logf("fiscal identity: CRIB %s, %s", info.CRIB, info.BusinessName)

	provisioned := make(map[string]bool, len(info.TaxRates))
	for _, r := range info.TaxRates {
		provisioned[r] = true
	}
	for _, rate := range d.taxes.Rates() {
		if !provisioned[rate] {
			return &ConfigError{
				Field:  "tax_rates",
				Reason: fmt.Sprintf("rate %s is not provisioned on the printer (printer has %v)", rate, info.TaxRates),
			}
		}
	}
	return nil
}

// syncDateTime aligns the printer clock with the host when they differ
// by more than two minutes.
func (d *driver) syncDateTime(ctx context.Context) error {
	resp, err := d.tr.Send(ctx, "get datetime", buildFrame(cmdGetDateTime))
	if err != nil {
		return err
	}
	printerTime, err := decodeDateTime(resp)
	if err != nil {
		return err
	}
	now := time.Now()
	drift := now.Sub(printerTime)
	if drift < 0 {
		drift = -drift
	}
	if drift <= 2*time.Minute {
		return nil
	}
	d.logf("printer clock drifts by %s, synchronizing", drift.Round(time.Second))

	date, _ := encodeText(now.Format("02012006"))
	clock, _ := encodeText(now.Format("150405"))
	_, err = d.tr.Send(ctx, "set datetime", buildFrame(cmdSetDateTime, date, clock))
	return err
}

func (d *driver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
	d.port = ""
	d.state = StateIdle
	if d.tr != nil {
		err := d.tr.Close()
		d.tr = nil
		return err
	}
	return nil
}

// GetStatus reports the session view plus the live printer state. When
// disconnected only the session fields are meaningful.
func (d *driver) GetStatus(ctx context.Context) (*Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := &Status{Connected: d.connected, Port: d.port, State: d.state}
	if !d.connected {
		return st, nil
	}

	if resp, err := d.tr.Send(ctx, "printer state", buildFrame(cmdPrinterState)); err == nil {
		if ps, derr := decodePrinterState(resp); derr == nil {
			st.PrinterState = ps.Description
			st.ResponseCode = ps.ResponseCode
		}
	}
	if resp, err := d.tr.Send(ctx, "hardware status", buildFrame(cmdHWStatus)); err == nil {
		if hw, derr := decodeHardwareStatus(resp); derr == nil {
			st.Online = hw.Online
			st.PaperLow = hw.PaperLow
			st.CoverOpen = hw.CoverOpen
		}
	}
	return st, nil
}

// requireIdle is called with the session lock held before an operation
// starts. A non-idle session means a previous attempt crashed or was
// aborted mid-document: a best-effort cancel clears it rather than
// compounding the damage.
func (d *driver) requireIdle(ctx context.Context) {
	if d.state != StateIdle {
		d.logf("session is %s, cancelling stale document", d.state)
		d.cancelDocument(ctx, "stale document")
		d.state = StateIdle
	}
}

// cancelDocument issues the cancel command and swallows the outcome.
// A NAK means there was nothing to cancel; a dead connection during
// cancel is expected after a transport failure and only logged.
func (d *driver) cancelDocument(ctx context.Context, reason string) {
	_, err := d.tr.Send(ctx, "cancel document", buildFrame(cmdCancelDoc))
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.Kind == TransportRejected {
			d.logf("nothing to cancel (%s)", reason)
			return
		}
		d.logf("cancel after %s failed: %v", reason, err)
		return
	}
	d.logf("document cancelled (%s)", reason)
}

// failOp is the common cleanup path for a transport failure after the
// document was opened: the cancel command is attempted so the printer is
// never left mid-document, a timeout additionally marks the session
// unusable, and the original error is returned.
func (d *driver) failOp(ctx context.Context, err error) error {
	d.cancelDocument(ctx, "operation failed")
	d.state = StateIdle
	if errIsTimeout(err) {
		d.connected = false
		d.logf("transport timeout, session marked unusable")
	}
	return err
}

// stateErr converts a persistent rejection into a StateError carrying
// the printer response code when it can be read.
func (d *driver) stateErr(ctx context.Context, op, reason string) *StateError {
	se := &StateError{Op: op, Reason: reason}
	if resp, err := d.tr.Send(ctx, "printer state", buildFrame(cmdPrinterState)); err == nil {
		if ps, derr := decodePrinterState(resp); derr == nil {
			se.Code = ps.ResponseCode
			if ps.ResponseDescription != "" {
				se.Reason = ps.ResponseDescription
			}
		}
	}
	return se
}

var _ Driver = (*driver)(nil)
