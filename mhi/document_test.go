package mhi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"printhub/fiscal"
)

// mockTransport counts logical commands; the retry policy lives below
// the Transport interface, so one Send is one command.
type mockTransport struct {
	calls  []string
	frames [][]byte
	OnSend func(op string, frame []byte) ([]byte, error)
}

func (m *mockTransport) Send(ctx context.Context, op string, frame []byte) ([]byte, error) {
	m.calls = append(m.calls, op)
	m.frames = append(m.frames, frame)
	if m.OnSend != nil {
		return m.OnSend(op, frame)
	}
	return []byte{ack}, nil
}

func (m *mockTransport) Close() error { return nil }

func (m *mockTransport) reset() {
	m.calls = nil
	m.frames = nil
}

// answer frames FS-separated fields as a full printer answer.
func answer(fields ...string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(stx)
	for _, f := range fields {
		buf.WriteByte(fs)
		buf.WriteString(f)
	}
	buf.WriteByte(etx)
	buf.WriteByte(ack)
	return buf.Bytes()
}

func fiscalInfoAnswer() []byte {
	fields := []string{"123456789", "Test Trading NV", "+599 9 555 0100", "Kaya Grandi 1", "Willemstad",
		"0600", "0700", "0900"}
	for len(fields) < 15 {
		fields = append(fields, "0000")
	}
	return answer(fields...)
}

func testConfig() Config {
	return Config{
		Port: "testport",
		Numbering: fiscal.Numbering{
			Source:         "A",
			RegistrationID: "123456789",
			RegisterID:     "01",
		},
	}
}

func rejected(op string) error {
	return &TransportError{Op: op, Kind: TransportRejected, Attempts: 3, Response: []byte{nak}}
}

// connectedDriver builds a driver over the mock and brings the session
// up; the calls made by Connect are cleared.
func connectedDriver(t *testing.T, mock *mockTransport) Driver {
	t.Helper()
	if mock.OnSend == nil {
		mock.OnSend = func(op string, frame []byte) ([]byte, error) {
			if op == "fiscal info" {
				return fiscalInfoAnswer(), nil
			}
			return []byte{ack}, nil
		}
	}
	drv, err := NewWithTransport(testConfig(), mock)
	if err != nil {
		t.Fatalf("NewWithTransport: %v", err)
	}
	if err := drv.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	mock.reset()
	return drv
}

func TestPrintDocumentCommandSequence(t *testing.T) {
	mock := &mockTransport{}
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "prepare document":
			return answer("000123"), nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	res, err := drv.PrintDocument(context.Background(), validTransaction())
	if err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}

	want := []string{
		"cancel document",
		"prepare document",
		"add item",
		"add item",
		"subtotal",
		"payment",
		"close document",
	}
	if len(mock.calls) != len(want) {
		t.Fatalf("issued %d commands %v, want %d", len(mock.calls), mock.calls, len(want))
	}
	for i, op := range want {
		if mock.calls[i] != op {
			t.Errorf("command %d is %q, want %q", i, mock.calls[i], op)
		}
	}

	if res.PrinterNumber != "000123" {
		t.Errorf("printer number %q", res.PrinterNumber)
	}
	nkf := res.DocumentNumber
	if len(nkf) != fiscal.NKFLength {
		t.Fatalf("document number %q has length %d", nkf, len(nkf))
	}
	if !strings.HasPrefix(nkf, "A12345678901") {
		t.Errorf("document number %q lacks the fiscal identity prefix", nkf)
	}
	if !strings.HasSuffix(nkf, "000042") {
		t.Errorf("document number %q lacks the padded sequence", nkf)
	}
	if nkf[12] != '1' {
		t.Errorf("document number %q is not a final consumer invoice", nkf)
	}
}

func TestPrintDocumentRefundWithCustomerIsCreditNote(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.IsRefund = true
	tx.Customer = &Customer{Name: "ACME NV", CRIB: "987654321"}

	res, err := drv.PrintDocument(context.Background(), tx)
	if err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}
	if res.DocumentNumber[12] != '4' {
		t.Errorf("document number %q is not a fiscal credit note", res.DocumentNumber)
	}
}

func TestPrintDocumentValidationFailureTouchesNothing(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Payments = nil

	_, err := drv.PrintDocument(context.Background(), tx)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type %T", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("validation failure issued %d commands: %v", len(mock.calls), mock.calls)
	}
}

func TestPrintDocumentUnknownTaxRateTouchesNothing(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Items[0].TaxRate = "13.00"

	_, err := drv.PrintDocument(context.Background(), tx)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type %T", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("unprovisioned rate issued %d commands: %v", len(mock.calls), mock.calls)
	}
}

func TestPrintDocumentUnknownPaymentMethodTouchesNothing(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Payments[0].Method = "barter"

	if _, err := drv.PrintDocument(context.Background(), tx); err == nil {
		t.Fatal("unmapped payment method accepted")
	}
	if len(mock.calls) != 0 {
		t.Errorf("unmapped method issued %d commands: %v", len(mock.calls), mock.calls)
	}
}

func TestPrintDocumentFailureCancelsDocument(t *testing.T) {
	mock := &mockTransport{}
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "payment":
			return nil, rejected(op)
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	_, err := drv.PrintDocument(context.Background(), validTransaction())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type %T", err)
	}

	cancels := 0
	for _, op := range mock.calls {
		if op == "cancel document" {
			cancels++
		}
	}
	// One routine cancel before opening plus the failure cleanup.
	if cancels != 2 {
		t.Errorf("cancel issued %d times, want 2 (calls: %v)", cancels, mock.calls)
	}
	if mock.calls[len(mock.calls)-1] != "cancel document" {
		t.Errorf("last command %q, want the cleanup cancel", mock.calls[len(mock.calls)-1])
	}

	st, err := drv.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.State != StateIdle {
		t.Errorf("session state %v after cleanup, want idle", st.State)
	}
	if !st.Connected {
		t.Error("session dropped after a rejection; only timeouts are fatal")
	}
}

func TestPrintDocumentTimeoutMarksSessionUnusable(t *testing.T) {
	mock := &mockTransport{}
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "close document":
			return nil, &TransportError{Op: op, Kind: TransportTimeout, Attempts: 3}
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	if _, err := drv.PrintDocument(context.Background(), validTransaction()); err == nil {
		t.Fatal("timeout not surfaced")
	}
	st, _ := drv.GetStatus(context.Background())
	if st.Connected {
		t.Error("session still connected after a transport timeout")
	}

	if _, err := drv.PrintDocument(context.Background(), validTransaction()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("follow-up print returned %v, want ErrNotConnected", err)
	}
}

func TestPrintDocumentChargesUseTotal(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Discount = &Charge{Description: "Happy hour", Percent: "10.00"}

	if _, err := drv.PrintDocument(context.Background(), tx); err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}
	want := []string{
		"cancel document",
		"prepare document",
		"add item",
		"add item",
		"subtotal",
		"discount",
		"total",
		"payment",
		"close document",
	}
	if fmt.Sprint(mock.calls) != fmt.Sprint(want) {
		t.Errorf("commands %v, want %v", mock.calls, want)
	}
}

func TestPrintDocumentSkipsVoidItems(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Items = append(tx.Items, LineItem{Description: "Mistake", UnitPrice: "1.00", Quantity: "1", TaxRate: "6", Void: true})

	if _, err := drv.PrintDocument(context.Background(), tx); err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}
	items := 0
	for _, op := range mock.calls {
		if op == "add item" {
			items++
		}
	}
	if items != 2 {
		t.Errorf("add item issued %d times, want 2", items)
	}
}

func TestPrintDocumentLongDescriptionWarns(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	tx := validTransaction()
	tx.Items[0].Description = strings.Repeat("x", 200)

	res, err := drv.PrintDocument(context.Background(), tx)
	if err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("no warning for a truncated description")
	}
	if !strings.Contains(res.Warnings[0], "truncated") {
		t.Errorf("warning %q does not mention truncation", res.Warnings[0])
	}
}

func TestReprintDocumentProbesDocumentClasses(t *testing.T) {
	mock := &mockTransport{}
	attempts := 0
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "reprint document":
			attempts++
			if attempts < 3 {
				return nil, rejected(op)
			}
			return []byte{ack}, nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	res, err := drv.ReprintDocument(context.Background(), "A123456789011000042")
	if err != nil {
		t.Fatalf("ReprintDocument: %v", err)
	}
	if res.DocumentNumber != "A123456789011000042" {
		t.Errorf("document number %q", res.DocumentNumber)
	}
	if attempts != 3 {
		t.Errorf("probed %d classes, want 3", attempts)
	}
}

func TestReprintDocumentNotFound(t *testing.T) {
	mock := &mockTransport{}
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "reprint document":
			return nil, rejected(op)
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	_, err := drv.ReprintDocument(context.Background(), "A123456789011999999")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("error type %T", err)
	}
	if !strings.Contains(se.Reason, "not found") {
		t.Errorf("reason %q", se.Reason)
	}
}

func TestPrintNoSaleSequence(t *testing.T) {
	mock := &mockTransport{}
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "close no-sale":
			return answer("000333"), nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	res, err := drv.PrintNoSale(context.Background(), "drawer count")
	if err != nil {
		t.Fatalf("PrintNoSale: %v", err)
	}
	if res.DocumentNumber != "000333" {
		t.Errorf("document number %q", res.DocumentNumber)
	}
	if mock.calls[0] != "open no-sale" || mock.calls[len(mock.calls)-1] != "close no-sale" {
		t.Errorf("commands %v", mock.calls)
	}
}
