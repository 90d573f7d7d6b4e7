package fiscal

import (
	"fmt"
	"sort"
	"strings"
)

// TaxTable maps a VAT percentage to the printer tax slot it was
// provisioned under. Rates are normalized to two decimals, so "9", "9.0"
// and "9.00" address the same slot. The printer cannot accept arbitrary
// rates at runtime: a rate outside the table is rejected before any
// transport command is issued.
type TaxTable map[string]string

// ExemptSlot is the slot for tax-exempt items (0% VAT).
const ExemptSlot = "0"

// NormalizeRate renders a decimal percentage in the canonical "NN.NN"
// form used as TaxTable key.
func NormalizeRate(rate string) (string, error) {
	rate = strings.TrimSpace(rate)
	intPart, fracPart, _ := strings.Cut(rate, ".")
	if intPart == "" || !allDigits(intPart) || !allDigits(fracPart) {
		return "", fmt.Errorf("fiscal: %q is not a valid tax rate", rate)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	if len(fracPart) > 2 {
		fracPart = fracPart[:2]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if len(intPart) < 2 {
		intPart = "0" + intPart
	}
	return intPart + "." + fracPart, nil
}

// NewTaxTable normalizes the rate keys of a raw mapping.
func NewTaxTable(raw map[string]string) (TaxTable, error) {
	t := make(TaxTable, len(raw))
	for rate, slot := range raw {
		norm, err := NormalizeRate(rate)
		if err != nil {
			return nil, err
		}
		t[norm] = slot
	}
	return t, nil
}

// Slot resolves a tax rate to its printer slot. A 0% rate maps to the
// exempt slot; any other rate absent from the table is rejected.
func (t TaxTable) Slot(rate string) (string, error) {
	norm, err := NormalizeRate(rate)
	if err != nil {
		return "", err
	}
	if norm == "00.00" {
		return ExemptSlot, nil
	}
	slot, ok := t[norm]
	if !ok {
		return "", fmt.Errorf("fiscal: tax rate %s is not provisioned on the printer", norm)
	}
	return slot, nil
}

// Rates lists the normalized rates of the table, sorted, for
// configuration checks and error messages.
func (t TaxTable) Rates() []string {
	rates := make([]string, 0, len(t))
	for r := range t {
		rates = append(rates, r)
	}
	sort.Strings(rates)
	return rates
}

// PaymentCodes maps an upstream payment-method name to the two-digit
// printer payment code. Matching is exact: an unmapped method is a
// validation failure, not a transport error.
type PaymentCodes map[string]string

// ReferencePaymentCodes is the method table of the MHI manual.
var ReferencePaymentCodes = PaymentCodes{
	"cash":        "00",
	"check":       "01",
	"credit_card": "02",
	"debit_card":  "03",
	"credit_note": "04",
	"coupon":      "05",
	"other_1":     "06",
	"other_2":     "07",
	"other_3":     "08",
	"other_4":     "09",
	"donations":   "10",
}

// Resolve maps a method name to its printer code.
func (p PaymentCodes) Resolve(method string) (string, error) {
	code, ok := p[method]
	if !ok {
		return "", fmt.Errorf("fiscal: payment method %q is not mapped to a printer code", method)
	}
	return code, nil
}
