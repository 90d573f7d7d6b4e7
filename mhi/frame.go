package mhi

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// buildFrame assembles a protocol frame:
// STX + command byte + (FS + parameter)* + ETX.
// Parameters are raw bytes; text parameters must already be encoded with
// encodeText. An empty parameter is legal and produces a zero-length field.
func buildFrame(code byte, params ...[]byte) []byte {
	size := 3
	for _, p := range params {
		size += 1 + len(p)
	}
	frame := make([]byte, 0, size)
	frame = append(frame, stx, code)
	for _, p := range params {
		frame = append(frame, fs)
		frame = append(frame, p...)
	}
	return append(frame, etx)
}

// responseClass is the transport-level interpretation of a raw answer.
type responseClass int

const (
	respAck       responseClass = iota // complete answer terminated by ACK
	respNak                            // explicit rejection
	respMalformed                      // bytes present but no valid terminator
)

// classify decides whether a raw answer is an acknowledgement, a
// rejection or garbage. Accepted terminators, mirroring the hardware
// behaviour:
//   - STX ... ETX ACK (answer with payload)
//   - BEL ... ETX ACK (intermediate answer with payload)
//   - bare ACK, possibly after BEL bytes (cancel answers BEL BEL ACK)
//   - bare NAK
func classify(data []byte) responseClass {
	if len(data) == 0 {
		return respMalformed
	}
	if data[len(data)-1] == nak {
		return respNak
	}
	if data[len(data)-1] != ack {
		return respMalformed
	}
	if len(data) == 1 {
		return respAck
	}
	if len(data) >= 2 && data[len(data)-2] == etx {
		if data[0] == stx || data[0] == bel {
			return respAck
		}
		return respMalformed
	}
	// ACK preceded by intermediate BEL bytes only.
	for _, b := range data[:len(data)-1] {
		if b != bel {
			return respMalformed
		}
	}
	return respAck
}

// payload extracts the FS-separated fields of a full answer
// (STX/BEL ... ETX ACK). Answers without payload yield nil.
func payload(data []byte) [][]byte {
	if len(data) < 4 || (data[0] != stx && data[0] != bel) {
		return nil
	}
	if data[len(data)-1] != ack || data[len(data)-2] != etx {
		return nil
	}
	body := data[1 : len(data)-2]
	if len(body) > 0 && body[0] == fs {
		body = body[1:]
	}
	return bytes.Split(body, []byte{fs})
}

// encodeText converts receipt text to the printer code page (CP850).
// Unmappable runes abort the conversion, the caller decides whether that
// is a validation failure.
func encodeText(s string) ([]byte, error) {
	out, _, err := transform.Bytes(charmap.CodePage850.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("mhi: cannot encode %q for printer: %w", s, err)
	}
	return out, nil
}

// decodeText converts CP850 bytes from a printer answer to a string.
func decodeText(b []byte) string {
	out, _, err := transform.Bytes(charmap.CodePage850.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// encodeDecimal renders a non-negative decimal string the way the printer
// expects amounts: no separator, a fixed count of implied decimals.
// "100.00" with 2 decimals becomes "10000", "2" with 3 decimals "2000".
func encodeDecimal(value string, decimals int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "0"
	}
	intPart, fracPart, _ := strings.Cut(value, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return "", fmt.Errorf("mhi: %q is not a non-negative decimal", value)
	}
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	for len(fracPart) < decimals {
		fracPart += "0"
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" && decimals == 0 {
		return "0", nil
	}
	return intPart + fracPart, nil
}

// decodeDecimal reverses encodeDecimal: "8000" with 2 decimals is "80.00".
func decodeDecimal(value string, decimals int) string {
	for len(value) <= decimals {
		value = "0" + value
	}
	cut := len(value) - decimals
	if decimals == 0 {
		return strings.TrimLeft(value, "0")
	}
	return value[:cut] + "." + value[cut:]
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// padNumber left-pads a numeric string with zeros to the given width and
// truncates from the left when too long.
func padNumber(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return s
}
