package mhi

import (
	"context"
	"fmt"
	"sync"

	"printhub/fiscal"
)

// NewFakeDriver returns an in-memory Driver for development and tests.
// It validates transactions and numbering exactly like the real driver
// but prints nothing; documents are remembered so reprints and duplicate
// numbers behave realistically.
func NewFakeDriver(cfg Config) Driver {
	taxes, _ := fiscal.NewTaxTable(BrandCTS310II.TaxRates)
	return &fakeDriver{
		cfg:       cfg,
		taxes:     taxes,
		payments:  fiscal.ReferencePaymentCodes,
		documents: map[string]bool{},
	}
}

type fakeDriver struct {
	mu        sync.Mutex
	cfg       Config
	taxes     fiscal.TaxTable
	payments  fiscal.PaymentCodes
	connected bool
	dayClosed bool
	documents map[string]bool
	counter   int
}

func (d *fakeDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.cfg.Numbering.Validate(); err != nil {
		return err
	}
	d.connected = true
	return nil
}

func (d *fakeDriver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

func (d *fakeDriver) PrintDocument(ctx context.Context, tx *Transaction) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	for i, item := range tx.Items {
		if item.Void {
			continue
		}
		if _, err := d.taxes.Slot(item.TaxRate); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].tax_rate", i), Reason: err.Error()}
		}
	}
	for i, pay := range tx.Payments {
		if _, err := d.payments.Resolve(pay.Method); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("payments[%d].method", i), Reason: err.Error()}
		}
	}
	docType := fiscal.SelectDocumentType(tx.IsRefund, tx.hasCustomerTaxID())
	nkf, err := fiscal.GenerateNKF(d.cfg.Numbering, docType, tx.Sequence)
	if err != nil {
		return nil, &ValidationError{Field: "sequence", Reason: err.Error()}
	}
	if d.documents[nkf] {
		return nil, &StateError{Op: "prepare document", Reason: "document number already used"}
	}
	d.documents[nkf] = true
	d.dayClosed = false
	d.counter++
	return &Result{
		DocumentNumber: nkf,
		PrinterNumber:  fmt.Sprintf("%06d", d.counter),
	}, nil
}

func (d *fakeDriver) ReprintDocument(ctx context.Context, documentNumber string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	if !d.documents[documentNumber] {
		return nil, &StateError{Op: "reprint document", Reason: fmt.Sprintf("document %s not found in the printer archive", documentNumber)}
	}
	return &Result{DocumentNumber: documentNumber}, nil
}

func (d *fakeDriver) PrintNoSale(ctx context.Context, reason string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	d.counter++
	return &Result{DocumentNumber: fmt.Sprintf("%06d", d.counter)}, nil
}

func (d *fakeDriver) PrintXReport(ctx context.Context) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	return &Result{ReportsCompleted: 1}, nil
}

func (d *fakeDriver) PrintZReport(ctx context.Context, closeDay bool) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	if closeDay {
		if d.dayClosed {
			return nil, &StateError{Op: "z report", Code: "060B", Reason: "fiscal day already closed"}
		}
		d.dayClosed = true
	}
	return &Result{ReportsCompleted: 1}, nil
}

func (d *fakeDriver) PrintZReportByDate(ctx context.Context, r DateRange) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	if r.End.Before(r.Start) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date precedes start date"}
	}
	return &Result{ReportsCompleted: 1}, nil
}

func (d *fakeDriver) PrintZReportByNumberRange(ctx context.Context, start, end int) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, ErrNotConnected
	}
	if start <= 0 {
		return nil, &ValidationError{Field: "start", Reason: "closure numbers start at 1"}
	}
	if end < start {
		return nil, &ValidationError{Field: "end", Reason: "end precedes start"}
	}
	return &Result{ReportsCompleted: end - start + 1}, nil
}

func (d *fakeDriver) GetStatus(ctx context.Context) (*Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Status{
		Connected:    d.connected,
		Port:         "fake",
		State:        StateIdle,
		PrinterState: "standby",
		Online:       d.connected,
	}, nil
}

var _ Driver = (*fakeDriver)(nil)
