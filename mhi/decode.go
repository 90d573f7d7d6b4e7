package mhi

import (
	"fmt"
	"strconv"
	"time"
)

// printerState is the decoded answer of the state command (0x20).
type printerState struct {
	ResponseCode        string
	ResponseDescription string
	StateCode           string
	Description         string
	FiscalStatus        string
}

func decodePrinterState(resp []byte) (*printerState, error) {
	fields := payload(resp)
	if len(fields) < 2 {
		return nil, fmt.Errorf("mhi: state answer carries %d field(s)", len(fields))
	}
	// The response code arrives as a decimal string and is conventionally
	// presented as a 4-digit hex code.
	code := decodeText(fields[0])
	n, err := strconv.ParseInt(code, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("mhi: bad response code %q", code)
	}
	respCode := fmt.Sprintf("%04X", n)

	st := &printerState{
		ResponseCode:        respCode,
		ResponseDescription: responseDescriptions[respCode],
		StateCode:           decodeText(fields[1]),
	}
	st.Description = stateDescriptions[st.StateCode]
	if len(fields) > 2 {
		st.FiscalStatus = decodeText(fields[2])
	}
	return st, nil
}

// hardwareStatus is the decoded answer of the status command (0x3F):
// a 32-bit flag word transmitted as 8 hex characters.
type hardwareStatus struct {
	Online    bool
	CoverOpen bool
	PaperLow  bool
	PaperOut  bool
	Error     bool
}

func decodeHardwareStatus(resp []byte) (*hardwareStatus, error) {
	fields := payload(resp)
	if len(fields) == 0 {
		return nil, fmt.Errorf("mhi: empty status answer")
	}
	word, err := strconv.ParseUint(decodeText(fields[0]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("mhi: bad status word: %w", err)
	}
	bit := func(i uint) bool { return word&(1<<(31-i)) != 0 }
	return &hardwareStatus{
		Online:    !bit(0),
		CoverOpen: bit(1),
		Error:     bit(3),
		PaperLow:  bit(6),
		PaperOut:  bit(7),
	}, nil
}

// decodeDateTime parses the datetime answer (0x24): DDMMYYYY and HHMMSS
// in two fields.
func decodeDateTime(resp []byte) (time.Time, error) {
	fields := payload(resp)
	if len(fields) < 2 {
		return time.Time{}, fmt.Errorf("mhi: datetime answer carries %d field(s)", len(fields))
	}
	return time.ParseInLocation("02012006150405", decodeText(fields[0])+decodeText(fields[1]), time.Local)
}

// decodeFiscalInfo parses the fiscal information answer (0x26): identity
// fields followed by the ten provisioned tax rates as 4-digit strings
// ("0600" is 6.00%).
func decodeFiscalInfo(resp []byte) (*FiscalInfo, error) {
	fields := payload(resp)
	if len(fields) < 15 {
		return nil, fmt.Errorf("mhi: fiscal info answer carries %d field(s)", len(fields))
	}
	info := &FiscalInfo{
		CRIB:         decodeText(fields[0]),
		BusinessName: decodeText(fields[1]),
		Phone:        decodeText(fields[2]),
		Address1:     decodeText(fields[3]),
		Address2:     decodeText(fields[4]),
	}
	for i := 5; i < 15; i++ {
		raw := decodeText(fields[i])
		if len(raw) != 4 {
			return nil, fmt.Errorf("mhi: bad tax rate field %q", raw)
		}
		rate := raw[:2] + "." + raw[2:]
		if rate == "00.00" {
			continue // unused slot
		}
		info.TaxRates = append(info.TaxRates, rate)
	}
	return info, nil
}

// decodeDocumentNumber extracts the printer-internal document number
// from a prepare or no-sale close answer.
func decodeDocumentNumber(resp []byte) (string, error) {
	fields := payload(resp)
	if len(fields) == 0 || len(fields[0]) == 0 {
		return "", fmt.Errorf("mhi: answer carries no document number")
	}
	return decodeText(fields[0]), nil
}

// decodeTotals parses the subtotal/total answer (0x42): exempt total,
// ten (sales, tax) pairs, document total and item count, all with two
// implied decimals except the count.
func decodeTotals(resp []byte) (*Totals, error) {
	fields := payload(resp)
	if len(fields) < 23 {
		return nil, fmt.Errorf("mhi: totals answer carries %d field(s)", len(fields))
	}
	t := &Totals{
		Exempt: decodeDecimal(decodeText(fields[0]), 2),
		BySlot: make([]SlotTotal, 0, 10),
	}
	for i := 0; i < 10; i++ {
		t.BySlot = append(t.BySlot, SlotTotal{
			Sales: decodeDecimal(decodeText(fields[1+2*i]), 2),
			Tax:   decodeDecimal(decodeText(fields[2+2*i]), 2),
		})
	}
	t.DocumentTotal = decodeDecimal(decodeText(fields[21]), 2)
	t.ItemCount = decodeText(fields[22])
	return t, nil
}
