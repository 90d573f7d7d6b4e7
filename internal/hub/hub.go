// Package hub is the service layer between the transport-facing API and
// the printer driver. It owns the one-operation-at-a-time discipline,
// converts driver errors into the wire error envelope, and journals
// every completed fiscal operation.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"printhub/fiscal"
	"printhub/internal/journal"
	"printhub/internal/logger"
	"printhub/mhi"
)

// ErrorInfo is the wire form of a failed operation.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Response is the envelope every hub operation answers with.
type Response struct {
	Success          bool        `json:"success"`
	OperationID      string      `json:"operation_id"`
	DocumentNumber   string      `json:"document_number,omitempty"`
	PrinterNumber    string      `json:"printer_number,omitempty"`
	ReportsCompleted int         `json:"reports_completed,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	Totals           *mhi.Totals `json:"totals,omitempty"`
	Error            *ErrorInfo  `json:"error,omitempty"`
}

// Hub wires a driver, the journal and a logger together.
type Hub struct {
	drv      mhi.Driver
	journal  journal.Journal
	log      logger.Logger
	software string
}

// New builds a hub. The journal may be nil when journaling is disabled.
func New(drv mhi.Driver, j journal.Journal, log logger.Logger, software string) *Hub {
	return &Hub{drv: drv, journal: j, log: log, software: software}
}

// Connect establishes the printer session.
func (h *Hub) Connect(ctx context.Context) error {
	return h.drv.Connect(ctx)
}

// Disconnect releases the printer session.
func (h *Hub) Disconnect() error {
	return h.drv.Disconnect()
}

// PrintDocument prints one fiscal document and journals it.
func (h *Hub) PrintDocument(ctx context.Context, tx *mhi.Transaction) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: print document (receipt %s)", opID, tx.ReceiptID)

	res, err := h.drv.PrintDocument(ctx, tx)
	if err != nil {
		return h.fail(opID, "print document", err)
	}

	docType := fiscal.SelectDocumentType(tx.IsRefund, tx.Customer != nil && tx.Customer.CRIB != "")
	entry := journal.Entry{
		Operation:      "print_document",
		DocumentNumber: res.DocumentNumber,
		PrinterNumber:  res.PrinterNumber,
		DocumentType:   docType.String(),
		Software:       h.software,
		POSName:        tx.POSName,
	}
	if tx.Customer != nil {
		entry.CustomerCRIB = tx.Customer.CRIB
	}
	if res.Totals != nil {
		entry.Total = res.Totals.DocumentTotal
	}
	h.record(opID, entry)
	return h.ok(opID, res)
}

// ReprintDocument prints an archive copy of a past document.
func (h *Hub) ReprintDocument(ctx context.Context, documentNumber string) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: reprint %s", opID, documentNumber)

	res, err := h.drv.ReprintDocument(ctx, documentNumber)
	if err != nil {
		return h.fail(opID, "reprint document", err)
	}
	h.record(opID, journal.Entry{
		Operation:      "reprint_document",
		DocumentNumber: res.DocumentNumber,
		Software:       h.software,
	})
	return h.ok(opID, res)
}

// PrintNoSale opens the cash drawer with a non-fiscal document.
func (h *Hub) PrintNoSale(ctx context.Context, reason string) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: no sale", opID)

	res, err := h.drv.PrintNoSale(ctx, reason)
	if err != nil {
		return h.fail(opID, "no sale", err)
	}
	h.record(opID, journal.Entry{
		Operation:     "no_sale",
		PrinterNumber: res.DocumentNumber,
		Software:      h.software,
	})
	return h.ok(opID, res)
}

// PrintXReport prints the running day totals.
func (h *Hub) PrintXReport(ctx context.Context) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: x report", opID)

	res, err := h.drv.PrintXReport(ctx)
	if err != nil {
		return h.fail(opID, "x report", err)
	}
	return h.ok(opID, res)
}

// PrintZReport closes the fiscal day (or copies the last closure).
func (h *Hub) PrintZReport(ctx context.Context, closeDay bool) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: z report (close day: %v)", opID, closeDay)

	res, err := h.drv.PrintZReport(ctx, closeDay)
	if err != nil {
		return h.fail(opID, "z report", err)
	}
	if closeDay {
		h.record(opID, journal.Entry{
			Operation: "z_report",
			Software:  h.software,
		})
	}
	return h.ok(opID, res)
}

// PrintZReportByDate reprints archived closures by calendar range.
func (h *Hub) PrintZReportByDate(ctx context.Context, start, end time.Time) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: z reports %s..%s", opID, start.Format("2006-01-02"), end.Format("2006-01-02"))

	res, err := h.drv.PrintZReportByDate(ctx, mhi.DateRange{Start: start, End: end})
	if err != nil {
		return h.fail(opID, "z report by date", err)
	}
	return h.ok(opID, res)
}

// PrintZReportByNumberRange reprints archived closures by number.
func (h *Hub) PrintZReportByNumberRange(ctx context.Context, start, end int) *Response {
	opID := uuid.NewString()
	h.log.Info("op %s: z reports #%d..#%d", opID, start, end)

	res, err := h.drv.PrintZReportByNumberRange(ctx, start, end)
	if err != nil {
		return h.fail(opID, "z report by number", err)
	}
	return h.ok(opID, res)
}

// GetStatus reports the session and hardware status.
func (h *Hub) GetStatus(ctx context.Context) (*mhi.Status, error) {
	return h.drv.GetStatus(ctx)
}

// Journal exposes the journal for read endpoints; nil when disabled.
func (h *Hub) Journal() journal.Journal {
	return h.journal
}

func (h *Hub) ok(opID string, res *mhi.Result) *Response {
	return &Response{
		Success:          true,
		OperationID:      opID,
		DocumentNumber:   res.DocumentNumber,
		PrinterNumber:    res.PrinterNumber,
		ReportsCompleted: res.ReportsCompleted,
		Warnings:         res.Warnings,
		Totals:           res.Totals,
	}
}

func (h *Hub) fail(opID, op string, err error) *Response {
	info := classifyError(err)
	h.log.Error("op %s: %s failed: %s: %s", opID, op, info.Type, info.Message)
	return &Response{OperationID: opID, Error: info}
}

func (h *Hub) record(opID string, e journal.Entry) {
	if h.journal == nil {
		return
	}
	if _, err := h.journal.Append(e); err != nil {
		// Journal failures never fail the fiscal operation itself.
		h.log.Error("op %s: journal append failed: %v", opID, err)
	}
}

// classifyError maps the driver error taxonomy onto the wire envelope.
func classifyError(err error) *ErrorInfo {
	var ve *mhi.ValidationError
	if errors.As(err, &ve) {
		return &ErrorInfo{Type: "validation", Message: ve.Reason, Field: ve.Field}
	}
	var se *mhi.StateError
	if errors.As(err, &se) {
		return &ErrorInfo{Type: "state", Message: se.Reason, Code: se.Code}
	}
	var ce *mhi.ConfigError
	if errors.As(err, &ce) {
		return &ErrorInfo{Type: "config", Message: ce.Reason, Field: ce.Field}
	}
	var te *mhi.TransportError
	if errors.As(err, &te) {
		msg := te.Error()
		if te.Kind == mhi.TransportTimeout {
			msg = fmt.Sprintf("printer did not answer after %d attempts", te.Attempts)
		}
		return &ErrorInfo{Type: "transport", Message: msg, Code: strings.ToLower(te.Kind.String())}
	}
	if errors.Is(err, mhi.ErrNotConnected) {
		return &ErrorInfo{Type: "state", Message: "printer is not connected"}
	}
	return &ErrorInfo{Type: "transport", Message: err.Error()}
}
