// Package fiscal implements the numbering and compliance rules for MHI
// fiscal documents: NKF generation and parsing, tax-rate validation
// against the printer's provisioned table, and payment-method mapping.
// Everything here is pure; persistence of the sequence counter is owned
// by the calling POS adapter.
package fiscal

import (
	"errors"
	"fmt"
	"strings"
)

// NKF layout, 19 characters total:
//
//	source (1) + registration id (9) + register id (2) + type digit (1) + sequence (6)
//
// Example: A122202235111000417.
const (
	NKFLength       = 19
	sourceLen       = 1
	registrationLen = 9
	registerLen     = 2
	sequenceLen     = 6
)

var (
	ErrInvalidNKFLength = errors.New("fiscal: NKF must be 19 characters")
	ErrSequenceRange    = errors.New("fiscal: sequence counter out of range (0..999999)")
)

// DocumentType is the fiscal document class digit of an NKF.
type DocumentType int

const (
	FinalConsumerInvoice    DocumentType = 1
	FiscalCreditInvoice     DocumentType = 2
	FinalConsumerCreditNote DocumentType = 3
	FiscalCreditNote        DocumentType = 4
)

// Digit returns the single-character wire form of the type.
func (d DocumentType) Digit() string { return fmt.Sprintf("%d", int(d)) }

func (d DocumentType) String() string {
	switch d {
	case FinalConsumerInvoice:
		return "final consumer invoice"
	case FiscalCreditInvoice:
		return "fiscal credit invoice"
	case FinalConsumerCreditNote:
		return "final consumer credit note"
	case FiscalCreditNote:
		return "fiscal credit note"
	}
	return "unknown document type"
}

// IsCreditNote reports whether the type is one of the refund classes.
func (d DocumentType) IsCreditNote() bool {
	return d == FinalConsumerCreditNote || d == FiscalCreditNote
}

// FiscalIdentity reports whether the document carries the customer tax
// identity (the fiscal-credit classes).
func (d DocumentType) FiscalIdentity() bool {
	return d == FiscalCreditInvoice || d == FiscalCreditNote
}

// SelectDocumentType picks the document class. Callers never choose the
// digit directly: refund status and presence of a customer tax identity
// fully determine it.
func SelectDocumentType(isRefund, hasCustomerTaxID bool) DocumentType {
	switch {
	case isRefund && hasCustomerTaxID:
		return FiscalCreditNote
	case isRefund:
		return FinalConsumerCreditNote
	case hasCustomerTaxID:
		return FiscalCreditInvoice
	default:
		return FinalConsumerInvoice
	}
}

// Numbering carries the configured NKF components that do not vary per
// document. It is immutable for the lifetime of a driver session.
type Numbering struct {
	Source         string `json:"source" mapstructure:"source"`                   // 1 character, upper-cased
	RegistrationID string `json:"registration_id" mapstructure:"registration_id"` // CRIB, 9 digits
	RegisterID     string `json:"register_id" mapstructure:"register_id"`         // register/terminal, 2 digits
}

// Validate reports the first invalid component, or nil.
func (n Numbering) Validate() error {
	if len(n.Source) != sourceLen || n.Source < "A" || n.Source > "Z" {
		return fmt.Errorf("fiscal: source must be a single letter A-Z, got %q", n.Source)
	}
	if len(n.RegistrationID) != registrationLen || !allDigits(n.RegistrationID) {
		return fmt.Errorf("fiscal: registration id must be %d digits, got %q", registrationLen, n.RegistrationID)
	}
	if len(n.RegisterID) != registerLen || !allDigits(n.RegisterID) {
		return fmt.Errorf("fiscal: register id must be %d digits, got %q", registerLen, n.RegisterID)
	}
	return nil
}

// GenerateNKF builds the document number for the given type and sequence
// counter. Pure and deterministic: equal inputs always yield equal
// output, distinct (type, sequence) pairs under one Numbering never
// collide. The counter is owned and persisted by the caller.
func GenerateNKF(n Numbering, docType DocumentType, sequence int) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	if docType < FinalConsumerInvoice || docType > FiscalCreditNote {
		return "", fmt.Errorf("fiscal: invalid document type %d", int(docType))
	}
	if sequence < 0 || sequence > 999999 {
		return "", ErrSequenceRange
	}
	nkf := strings.ToUpper(n.Source) +
		n.RegistrationID +
		n.RegisterID +
		docType.Digit() +
		fmt.Sprintf("%0*d", sequenceLen, sequence)
	return nkf, nil
}

// ParsedNKF is the decomposition of a document number.
type ParsedNKF struct {
	Source         string
	RegistrationID string
	RegisterID     string
	DocumentType   DocumentType
	Sequence       string
}

// ParseNKF splits a 19-character NKF into its components.
func ParseNKF(nkf string) (*ParsedNKF, error) {
	if len(nkf) != NKFLength {
		return nil, ErrInvalidNKFLength
	}
	typeDigit := nkf[12] - '0'
	if typeDigit < 1 || typeDigit > 4 {
		return nil, fmt.Errorf("fiscal: invalid document type digit %q", nkf[12])
	}
	return &ParsedNKF{
		Source:         nkf[0:1],
		RegistrationID: nkf[1:10],
		RegisterID:     nkf[10:12],
		DocumentType:   DocumentType(typeDigit),
		Sequence:       nkf[13:19],
	}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
