package mhi

import (
	"fmt"
	"strings"
)

// Receipt layout constants shared by all MHI brands: a physical line is
// 48 characters and one item carries up to three description lines.
const (
	LineWidth        = 48
	DescriptionLines = 3
)

// Validate enforces the transaction format invariants. It returns a
// *ValidationError naming the violated field, or nil. No printer state is
// touched here; a rejected transaction has zero side effects.
func (t *Transaction) Validate() error {
	if len(t.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	if len(t.Payments) == 0 {
		return &ValidationError{Field: "payments", Reason: "at least one payment required"}
	}
	if t.Sequence < 0 {
		return &ValidationError{Field: "sequence", Reason: "sequence counter must not be negative"}
	}

	payable := 0
	for i, item := range t.Items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if strings.TrimSpace(item.Description) == "" {
			return &ValidationError{Field: field("description"), Reason: "empty description"}
		}
		if err := checkDecimal(item.UnitPrice); err != nil {
			return &ValidationError{Field: field("unit_price"), Reason: err.Error()}
		}
		if err := checkDecimal(item.Quantity); err != nil {
			return &ValidationError{Field: field("quantity"), Reason: err.Error()}
		}
		if !item.Void && isZeroDecimal(item.Quantity) {
			return &ValidationError{Field: field("quantity"), Reason: "quantity must be positive"}
		}
		if err := checkDecimal(item.TaxRate); err != nil {
			return &ValidationError{Field: field("tax_rate"), Reason: err.Error()}
		}
		if item.DiscountPercent != "" {
			if err := checkDecimal(item.DiscountPercent); err != nil {
				return &ValidationError{Field: field("discount_percent"), Reason: err.Error()}
			}
		}
		if item.SurchargeAmount != "" {
			if err := checkDecimal(item.SurchargeAmount); err != nil {
				return &ValidationError{Field: field("surcharge_amount"), Reason: err.Error()}
			}
		}
		if !item.Void {
			payable++
		}
	}
	if payable == 0 {
		return &ValidationError{Field: "items", Reason: "all line items are void"}
	}

	for i, pay := range t.Payments {
		if strings.TrimSpace(pay.Method) == "" {
			return &ValidationError{Field: fmt.Sprintf("payments[%d].method", i), Reason: "empty payment method"}
		}
		if err := checkDecimal(pay.Amount); err != nil {
			return &ValidationError{Field: fmt.Sprintf("payments[%d].amount", i), Reason: err.Error()}
		}
	}
	for i, tip := range t.Tips {
		if err := checkDecimal(tip.Amount); err != nil {
			return &ValidationError{Field: fmt.Sprintf("tips[%d].amount", i), Reason: err.Error()}
		}
	}
	for _, c := range []struct {
		name   string
		charge *Charge
	}{
		{"service_charge", t.ServiceCharge},
		{"discount", t.Discount},
		{"surcharge", t.Surcharge},
	} {
		if c.charge == nil {
			continue
		}
		if c.charge.Amount != "" {
			if err := checkDecimal(c.charge.Amount); err != nil {
				return &ValidationError{Field: c.name + ".amount", Reason: err.Error()}
			}
		}
		if c.charge.Percent != "" {
			if err := checkDecimal(c.charge.Percent); err != nil {
				return &ValidationError{Field: c.name + ".percent", Reason: err.Error()}
			}
		}
	}
	if t.Customer != nil && t.Customer.CRIB != "" && !digitsOnly(t.Customer.CRIB) {
		return &ValidationError{Field: "customer.crib", Reason: "tax id must be digits only"}
	}
	return nil
}

// hasCustomerTaxID reports whether the transaction carries a customer
// with a tax identity, which selects the fiscal-credit document types.
func (t *Transaction) hasCustomerTaxID() bool {
	return t.Customer != nil && t.Customer.CRIB != ""
}

// checkDecimal verifies that s parses as a non-negative decimal.
func checkDecimal(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("empty numeric field")
	}
	intPart, fracPart, dot := strings.Cut(s, ".")
	if intPart == "" || !digitsOnly(intPart) {
		return fmt.Errorf("%q is not a non-negative decimal", s)
	}
	if dot && (fracPart == "" || !digitsOnly(fracPart)) {
		return fmt.Errorf("%q is not a non-negative decimal", s)
	}
	return nil
}

func isZeroDecimal(s string) bool {
	for _, r := range s {
		if r >= '1' && r <= '9' {
			return false
		}
	}
	return true
}

// wrapDescription distributes text word-aware across at most maxLines
// lines of width characters. Words longer than a line are split. The
// second return value is the truncated remainder ("" when everything
// fit); truncation is a warning for the caller, never a failure.
func wrapDescription(text string, width, maxLines int) ([]string, string) {
	words := strings.Fields(text)
	lines := make([]string, 0, maxLines)
	current := ""

	flush := func() bool {
		if current == "" {
			return true
		}
		if len(lines) == maxLines {
			return false
		}
		lines = append(lines, current)
		current = ""
		return true
	}

	for i := 0; i < len(words); i++ {
		word := words[i]
		switch {
		case current == "" && len(word) <= width:
			current = word
		case current == "" && len(word) > width:
			current = word[:width]
			// Re-queue the tail of the oversized word.
			words[i] = word[width:]
			i--
		case len(current)+1+len(word) <= width:
			current += " " + word
		default:
			if len(lines)+1 == maxLines {
				// Last line is full; everything from here on is overflow.
				lines = append(lines, current)
				return lines, strings.Join(words[i:], " ")
			}
			lines = append(lines, current)
			current = ""
			i--
		}
	}
	if !flush() {
		return lines, current
	}
	return lines, ""
}

// descriptionLines renders an item description (plus optional notes) as
// the fixed three physical lines of the add-item command. All three
// fields must be non-empty on the wire; blank lines carry a space.
func descriptionLines(item LineItem) ([DescriptionLines]string, string) {
	text := item.Description
	if len(item.Notes) > 0 {
		text = text + " " + strings.Join(item.Notes, " ")
	}
	wrapped, overflow := wrapDescription(text, LineWidth, DescriptionLines)

	var lines [DescriptionLines]string
	for i := 0; i < DescriptionLines; i++ {
		if i < len(wrapped) {
			lines[i] = wrapped[i]
		} else {
			lines[i] = " "
		}
	}
	return lines, overflow
}
