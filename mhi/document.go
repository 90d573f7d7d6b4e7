package mhi

import (
	"context"
	"errors"
	"fmt"

	"printhub/fiscal"
)

// defaultCustomerName is printed on final-consumer documents, which carry
// no customer identity of their own.
const defaultCustomerName = "Regular client"

// zeroField is the wire form of an absent amount or percentage.
const zeroField = "000"

// documentPlan is the fully validated and encoded command sequence of one
// fiscal document. Building the plan performs every compliance check, so
// a plan that exists can be transmitted without further validation and a
// transaction that fails planning caused zero transport traffic.
type documentPlan struct {
	nkf       string
	docType   fiscal.DocumentType
	prepare   [][]byte
	items     [][][]byte
	service   [][]byte // nil when absent
	discount  [][]byte
	surcharge [][]byte
	payments  [][][]byte
	comments  [][]byte
	warnings  []string
}

// planDocument validates the transaction and encodes every frame
// parameter. All failures surface as *ValidationError.
func (d *driver) planDocument(tx *Transaction) (*documentPlan, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	docType := fiscal.SelectDocumentType(tx.IsRefund, tx.hasCustomerTaxID())
	nkf, err := fiscal.GenerateNKF(d.cfg.Numbering, docType, tx.Sequence)
	if err != nil {
		return nil, &ValidationError{Field: "sequence", Reason: err.Error()}
	}

	plan := &documentPlan{nkf: nkf, docType: docType}

	// Prepare fields: type, branch, POS, customer name, CRIB, NKF,
	// affected NKF. Final-consumer documents send a zero-length CRIB
	// field so the printer suppresses the identity line.
	customerName := defaultCustomerName
	customerCRIB := ""
	if docType.FiscalIdentity() {
		customerName = tx.Customer.Name
		customerCRIB = padNumber(tx.Customer.CRIB, 10)
	}
	pos := tx.ReceiptID
	if pos == "" {
		pos = d.cfg.TerminalID
	}
	plan.prepare, err = encodeParams(
		docType.Digit(), d.cfg.BranchID, pos, customerName, customerCRIB, nkf, nkf,
	)
	if err != nil {
		return nil, &ValidationError{Field: "customer", Reason: err.Error()}
	}

	for i, item := range tx.Items {
		if item.Void {
			continue
		}
		params, warn, perr := d.planItem(item)
		if perr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: perr.Error()}
		}
		if warn != "" {
			plan.warnings = append(plan.warnings, fmt.Sprintf("items[%d]: %s", i, warn))
		}
		plan.items = append(plan.items, params)
	}

	plan.service, err = planCharge(tx.ServiceCharge, chargeService, "Service charge")
	if err != nil {
		return nil, &ValidationError{Field: "service_charge", Reason: err.Error()}
	}
	plan.discount, err = planCharge(tx.Discount, chargeDiscount, "Discount")
	if err != nil {
		return nil, &ValidationError{Field: "discount", Reason: err.Error()}
	}
	plan.surcharge, err = planCharge(tx.Surcharge, chargeSurcharge, "Surcharge")
	if err != nil {
		return nil, &ValidationError{Field: "surcharge", Reason: err.Error()}
	}

	for i, pay := range tx.Payments {
		code, rerr := d.payments.Resolve(pay.Method)
		if rerr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("payments[%d].method", i), Reason: rerr.Error()}
		}
		amount, aerr := encodeDecimal(pay.Amount, 2)
		if aerr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("payments[%d].amount", i), Reason: aerr.Error()}
		}
		params, perr := encodeParams(paymentTypePay, code, " ", amount)
		if perr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("payments[%d]", i), Reason: perr.Error()}
		}
		plan.payments = append(plan.payments, params)
	}
	for i, tip := range tx.Tips {
		amount, aerr := encodeDecimal(tip.Amount, 2)
		if aerr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tips[%d].amount", i), Reason: aerr.Error()}
		}
		params, perr := encodeParams(paymentTypePay, d.tipCode(), "Tip", amount)
		if perr != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tips[%d]", i), Reason: perr.Error()}
		}
		plan.payments = append(plan.payments, params)
	}

	plan.comments = d.planComments(tx, docType)
	return plan, nil
}

// planItem encodes one non-void line item. Field order per the MHI
// manual: type, three description lines, product code, quantity, unit
// price, unit, tax slot, discount type, discount amount, discount
// percent, plus two fixed trailing fields.
func (d *driver) planItem(item LineItem) ([][]byte, string, error) {
	slot, err := d.taxes.Slot(item.TaxRate)
	if err != nil {
		return nil, "", err
	}
	quantity, err := encodeDecimal(item.Quantity, 3)
	if err != nil {
		return nil, "", err
	}
	price, err := encodeDecimal(item.UnitPrice, 2)
	if err != nil {
		return nil, "", err
	}

	discountType := chargeDiscount
	discountAmount := zeroField
	discountPercent := zeroField
	switch {
	case item.DiscountPercent != "" && !isZeroDecimal(item.DiscountPercent):
		discountPercent, err = encodeDecimal(item.DiscountPercent, 2)
	case item.SurchargeAmount != "" && !isZeroDecimal(item.SurchargeAmount):
		discountType = chargeSurcharge
		discountAmount, err = encodeDecimal(item.SurchargeAmount, 2)
	}
	if err != nil {
		return nil, "", err
	}

	lines, overflow := descriptionLines(item)
	warning := ""
	if overflow != "" {
		warning = fmt.Sprintf("description truncated, dropped %q", overflow)
	}

	entryType := itemTypeNormal
	if item.Void {
		entryType = itemTypeVoid
	}

	params, err := encodeParams(
		entryType, lines[0], lines[1], lines[2],
		" ", // product code is hidden on the printout
		quantity, price, measurementUnit(item.Unit), slot,
		discountType, discountAmount, discountPercent,
		"2", "2",
	)
	if err != nil {
		return nil, "", err
	}
	return params, warning, nil
}

// planCharge encodes a transaction-level charge, nil when absent.
func planCharge(c *Charge, chargeType, defaultDescription string) ([][]byte, error) {
	if c == nil || (isZeroDecimal(c.Amount) && isZeroDecimal(c.Percent)) {
		return nil, nil
	}
	amount := zeroField
	percent := zeroField
	var err error
	if c.Amount != "" && !isZeroDecimal(c.Amount) {
		if amount, err = encodeDecimal(c.Amount, 2); err != nil {
			return nil, err
		}
	}
	if c.Percent != "" && !isZeroDecimal(c.Percent) {
		if percent, err = encodeDecimal(c.Percent, 2); err != nil {
			return nil, err
		}
	}
	description := c.Description
	if description == "" {
		description = defaultDescription
	}
	return encodeParams(chargeType, description, amount, percent)
}

// planComments builds the trailing comment lines: the customer identity
// block for fiscal-credit documents, the external receipt id, and the
// wrapped free-text comment.
func (d *driver) planComments(tx *Transaction, docType fiscal.DocumentType) [][]byte {
	var texts []string
	if docType.FiscalIdentity() {
		texts = append(texts,
			"CUSTOMER: "+tx.Customer.Name,
			"CRIB: "+padNumber(tx.Customer.CRIB, 10),
		)
	}
	if tx.ReceiptID != "" {
		texts = append(texts, "Receipt ID: "+tx.ReceiptID)
	}
	if tx.POSName != "" {
		texts = append(texts, "POS: "+tx.POSName)
	}
	if tx.Comment != "" {
		lines, overflow := wrapDescription(tx.Comment, LineWidth, DescriptionLines)
		texts = append(texts, lines...)
		if overflow != "" {
			texts = append(texts, overflow[:min(len(overflow), LineWidth)])
		}
	}

	comments := make([][]byte, 0, len(texts))
	for _, text := range texts {
		if enc, err := encodeText(text); err == nil {
			comments = append(comments, enc)
		}
	}
	return comments
}

func (d *driver) tipCode() string {
	if code, err := d.payments.Resolve("tip"); err == nil {
		return code
	}
	return "06"
}

// PrintDocument runs the full fiscal document sequence. Validation
// happens entirely before the first transport call; after the document
// is opened every irrecoverable failure triggers a best-effort cancel so
// the printer is never left mid-document.
func (d *driver) PrintDocument(ctx context.Context, tx *Transaction) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}

	plan, err := d.planDocument(tx)
	if err != nil {
		return nil, err
	}

	// A crashed or aborted earlier attempt may have left a document open;
	// cancelling from standby is answered and ignored.
	d.cancelDocument(ctx, "new document")

	d.state = StateOpening
	resp, err := d.tr.Send(ctx, "prepare document", buildFrame(cmdPrepareDoc, plan.prepare...))
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.Kind == TransportRejected {
			d.state = StateIdle
			return nil, d.stateErr(ctx, "prepare document", "printer rejected the document")
		}
		return nil, d.failOp(ctx, err)
	}
	printerNumber, _ := decodeDocumentNumber(resp)
	d.logf("document %s opened as %s (%s)", plan.nkf, printerNumber, plan.docType)

	d.state = StateAddingItems
	for _, item := range plan.items {
		if _, err := d.tr.Send(ctx, "add item", buildFrame(cmdAddItem, item...)); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}
	if plan.service != nil {
		if _, err := d.tr.Send(ctx, "service charge", buildFrame(cmdCharge, plan.service...)); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}

	d.state = StateTotaling
	totals, err := d.sendSubOrTotal(ctx, "subtotal", "0")
	if err != nil {
		return nil, d.failOp(ctx, err)
	}
	if plan.discount != nil {
		if _, err := d.tr.Send(ctx, "discount", buildFrame(cmdCharge, plan.discount...)); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}
	if plan.surcharge != nil {
		if _, err := d.tr.Send(ctx, "surcharge", buildFrame(cmdCharge, plan.surcharge...)); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}
	if plan.discount != nil || plan.surcharge != nil {
		// The document total moved; recompute before taking payment.
		if totals, err = d.sendSubOrTotal(ctx, "total", "1"); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}

	d.state = StateTakingPayment
	for _, pay := range plan.payments {
		if _, err := d.tr.Send(ctx, "payment", buildFrame(cmdPayment, pay...)); err != nil {
			return nil, d.failOp(ctx, err)
		}
	}

	d.state = StateClosing
	for _, comment := range plan.comments {
		if _, err := d.tr.Send(ctx, "comment", buildFrame(cmdComment, comment)); err != nil {
			// Comment lines are cosmetic; the document is still valid.
			plan.warnings = append(plan.warnings, fmt.Sprintf("comment line dropped: %v", err))
			if errIsTimeout(err) {
				return nil, d.failOp(ctx, err)
			}
		}
	}
	if _, err := d.tr.Send(ctx, "close document", buildFrame(cmdCloseDoc)); err != nil {
		return nil, d.failOp(ctx, err)
	}

	d.state = StateIdle
	d.logf("document %s closed", plan.nkf)
	return &Result{
		DocumentNumber: plan.nkf,
		PrinterNumber:  printerNumber,
		Warnings:       plan.warnings,
		Totals:         totals,
	}, nil
}

// sendSubOrTotal issues the subtotal/total command; mode "0" computes
// the subtotal, "1" the final total.
func (d *driver) sendSubOrTotal(ctx context.Context, op, mode string) (*Totals, error) {
	enc, err := encodeText(mode)
	if err != nil {
		return nil, err
	}
	resp, err := d.tr.Send(ctx, op, buildFrame(cmdSubOrTotal, enc))
	if err != nil {
		return nil, err
	}
	totals, derr := decodeTotals(resp)
	if derr != nil {
		// Some firmware revisions answer the subtotal with a bare ACK.
		d.logf("%s answer not decodable: %v", op, derr)
		return nil, nil
	}
	return totals, nil
}

// ReprintDocument prints a copy of an archived document as a no-sale
// operation. The document class is not known to the caller, so the
// archive is probed across all classes until the number is found.
func (d *driver) ReprintDocument(ctx context.Context, documentNumber string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	if documentNumber == "" {
		return nil, &ValidationError{Field: "document_number", Reason: "empty document number"}
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	defer func() { d.state = StateIdle }()

	number, err := encodeText(documentNumber)
	if err != nil {
		return nil, &ValidationError{Field: "document_number", Reason: err.Error()}
	}
	mode, _ := encodeText("1") // print directly

	var lastErr error
	for class := 1; class <= 10; class++ {
		classField, _ := encodeText(fmt.Sprintf("%02d", class))
		_, err := d.tr.Send(ctx, "reprint document", buildFrame(cmdReprint, mode, classField, number))
		if err == nil {
			d.logf("document %s reprinted (class %02d)", documentNumber, class)
			return &Result{DocumentNumber: documentNumber}, nil
		}
		lastErr = err
		if errIsTimeout(err) {
			d.connected = false
			return nil, err
		}
	}
	var te *TransportError
	if errors.As(lastErr, &te) && te.Kind == TransportRejected {
		return nil, &StateError{Op: "reprint document", Reason: fmt.Sprintf("document %s not found in the printer archive", documentNumber)}
	}
	return nil, lastErr
}

// PrintNoSale opens the cash drawer through a non-fiscal no-sale
// document: open, banner lines, close. The close answer carries the
// no-sale document number.
func (d *driver) PrintNoSale(ctx context.Context, reason string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	if _, err := d.tr.Send(ctx, "open no-sale", buildFrame(cmdNoSaleOpen)); err != nil {
		d.state = StateIdle
		return nil, err
	}

	res := &Result{}
	lines := []string{"NO SALE"}
	if reason != "" {
		wrapped, _ := wrapDescription("Reason: "+reason, LineWidth, DescriptionLines)
		lines = append(lines, wrapped...)
	}
	for _, line := range lines {
		enc, err := encodeText(line)
		if err != nil {
			continue
		}
		if _, err := d.tr.Send(ctx, "no-sale line", buildFrame(cmdNoSaleLine, enc)); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no-sale line dropped: %v", err))
			if errIsTimeout(err) {
				return nil, d.failOp(ctx, err)
			}
		}
	}

	resp, err := d.tr.Send(ctx, "close no-sale", buildFrame(cmdNoSaleClose))
	if err != nil {
		return nil, d.failOp(ctx, err)
	}
	d.state = StateIdle
	if number, derr := decodeDocumentNumber(resp); derr == nil {
		res.DocumentNumber = number
	}
	return res, nil
}

// encodeParams CP850-encodes a list of textual fields.
func encodeParams(fields ...string) ([][]byte, error) {
	out := make([][]byte, 0, len(fields))
	for _, f := range fields {
		enc, err := encodeText(f)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

// measurementUnit maps an upstream unit name to the printer vocabulary.
func measurementUnit(unit string) string {
	switch unit {
	case "", "unit", "units", "Units":
		return "Units"
	case "kg", "kilos", "Kilos":
		return "Kilos"
	case "g", "grams", "Grams":
		return "Grams"
	case "lb", "pounds", "Pounds":
		return "Pounds"
	case "box", "boxes", "Boxes":
		return "Boxes"
	default:
		return "Units"
	}
}
