package mhi

import "time"

// DocumentState is the lifecycle position of the driver session. It is
// mutated only by the document state machine.
type DocumentState int

const (
	StateIdle DocumentState = iota
	StateOpening
	StateAddingItems
	StateTotaling
	StateTakingPayment
	StateClosing
	StateNonFiscalOp
)

func (s DocumentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateAddingItems:
		return "adding-items"
	case StateTotaling:
		return "totaling"
	case StateTakingPayment:
		return "taking-payment"
	case StateClosing:
		return "closing"
	case StateNonFiscalOp:
		return "non-fiscal"
	}
	return "unknown"
}

// LineItem is one sellable line of a transaction. Numeric fields are
// opaque decimal strings as handed over by the upstream POS adapter; the
// adapter validates that they parse as non-negative decimals.
type LineItem struct {
	Description     string   `json:"description"`
	UnitPrice       string   `json:"unit_price"`
	Quantity        string   `json:"quantity"`
	Unit            string   `json:"unit,omitempty"` // Units, Kilos, Grams, Pounds, Boxes
	TaxRate         string   `json:"tax_rate"`       // percentage, e.g. "9.00"
	DiscountPercent string   `json:"discount_percent,omitempty"`
	SurchargeAmount string   `json:"surcharge_amount,omitempty"`
	Void            bool     `json:"void,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// Payment is one tender line. Method is matched against the configured
// payment mapping.
type Payment struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

// Charge is a transaction-level discount, surcharge or service charge.
// Either Amount or Percent is set; both zero means no charge.
type Charge struct {
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Percent     string `json:"percent,omitempty"`
}

// Customer identifies the invoiced party. A present tax id (CRIB)
// switches the document to the fiscal-credit variants.
type Customer struct {
	Name string `json:"name"`
	CRIB string `json:"crib"`
}

// Transaction is the canonical, software-agnostic shape of one POS
// transaction. Upstream adapters produce it; Validate enforces the
// format invariants before any byte reaches the printer.
type Transaction struct {
	Items         []LineItem `json:"items"`
	Payments      []Payment  `json:"payments"`
	ServiceCharge *Charge    `json:"service_charge,omitempty"`
	Tips          []Payment  `json:"tips,omitempty"`
	Discount      *Charge    `json:"discount,omitempty"`
	Surcharge     *Charge    `json:"surcharge,omitempty"`
	Customer      *Customer  `json:"customer,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	IsRefund      bool       `json:"is_refund,omitempty"`

	// External identifiers, never parsed by the engine.
	ReceiptID string `json:"receipt_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	POSName   string `json:"pos_name,omitempty"`

	// Software and Sequence come from the upstream adapter; the sequence
	// counter is owned and persisted there, never incremented here.
	Software string `json:"software,omitempty"`
	Sequence int    `json:"sequence"`
}

// Result reports a completed driver operation.
type Result struct {
	// DocumentNumber is the NKF asserted on the receipt (empty for
	// non-fiscal operations such as the X report).
	DocumentNumber string
	// PrinterNumber is the printer-internal document counter as decoded
	// from the prepare answer, kept for the journal.
	PrinterNumber string
	// ReportsCompleted counts report instances for the range variants.
	ReportsCompleted int
	// Warnings are non-fatal findings, e.g. truncated descriptions.
	Warnings []string
	// Totals is filled on successful document prints when the printer
	// returned them.
	Totals *Totals
}

// Totals is the decoded answer of the subtotal/total command.
type Totals struct {
	Exempt        string
	BySlot        []SlotTotal
	DocumentTotal string
	ItemCount     string
}

// SlotTotal is the per-tax-slot pair of taxable sales and tax amount.
type SlotTotal struct {
	Sales string
	Tax   string
}

// Status is the aggregated answer of the state and hardware status
// commands plus the session view of the driver.
type Status struct {
	Connected    bool          `json:"connected"`
	Port         string        `json:"port,omitempty"`
	State        DocumentState `json:"state"`
	PrinterState string        `json:"printer_state,omitempty"`
	ResponseCode string        `json:"response_code,omitempty"`
	Online       bool          `json:"online"`
	PaperLow     bool          `json:"paper_low"`
	CoverOpen    bool          `json:"cover_open"`
}

// FiscalInfo is the decoded answer of the fiscal information command:
// the identity burned into the printer plus its provisioned tax rates.
type FiscalInfo struct {
	CRIB         string
	BusinessName string
	Phone        string
	Address1     string
	Address2     string
	TaxRates     []string // ten slots, "00.00" when unused
}

// DateRange bounds the Z-report date range variant, inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}
