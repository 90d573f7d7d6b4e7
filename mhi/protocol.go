package mhi

import "time"

// Control bytes of the MHI serial protocol.
const (
	stx byte = 0x02 // start of frame
	etx byte = 0x03 // end of frame
	ack byte = 0x06 // positive answer
	bel byte = 0x07 // intermediate response
	nak byte = 0x15 // negative answer
	fs  byte = 0x1C // field separator
)

// Command codes. Each frame carries exactly one command byte after STX.
const (
	cmdPrinterState byte = 0x20
	cmdIdentify     byte = 0x21
	cmdSetDateTime  byte = 0x23
	cmdGetDateTime  byte = 0x24
	cmdFiscalInfo   byte = 0x26
	cmdHWStatus     byte = 0x3F
	cmdPrepareDoc   byte = 0x40
	cmdAddItem      byte = 0x41
	cmdSubOrTotal   byte = 0x42
	cmdCharge       byte = 0x43
	cmdPayment      byte = 0x44
	cmdCloseDoc     byte = 0x45
	cmdCancelDoc    byte = 0x46
	cmdComment      byte = 0x4A
	cmdNoSaleOpen   byte = 0x60
	cmdNoSaleLine   byte = 0x61
	cmdNoSaleClose  byte = 0x62
	cmdZReport      byte = 0x70
	cmdXReport      byte = 0x71
	cmdZByDate      byte = 0x74
	cmdZByNumber    byte = 0x75
	cmdZNext        byte = 0x76
	cmdZEnd         byte = 0x77
	cmdReprint      byte = 0xA8
)

// Serial defaults. The retry values are not a hardware requirement, they
// are the operational defaults and can be overridden through Config.
const (
	defaultBaudRate   = 9600
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 200 * time.Millisecond
)

// responseDescriptions maps the 4-digit response code returned in the
// printer state answer (command 0x20) to a human readable description.
var responseDescriptions = map[string]string{
	"0000": "last command successful",
	"0101": "command invalid in the current state",
	"0102": "command invalid in the current document",
	"0103": "service jumper connected",
	"0105": "command requires service jumper",
	"0107": "invalid command",
	"0108": "command invalid through USB port",
	"0109": "command missing mandatory field",
	"0110": "invalid field length",
	"0111": "field value is invalid or out of range",
	"0112": "inactive tax rate",
	"0202": "printing device out of line",
	"0204": "printing device out of paper",
	"0205": "invalid speed",
	"0301": "set fiscal info error",
	"0302": "set date error",
	"0303": "invalid date",
	"0402": "CRIB cannot be modified",
	"0501": "transaction memory full",
	"0503": "transaction memory not connected",
	"0504": "read/write error on transaction memory",
	"0505": "invalid transaction memory",
	"0601": "command invalid outside of fiscal period",
	"0602": "fiscal period not started",
	"0603": "fiscal memory full",
	"0604": "fiscal memory not connected",
	"0605": "invalid fiscal memory",
	"0606": "command requires a Z report",
	"0607": "cannot find document",
	"0608": "fiscal period empty",
	"0609": "requested period empty",
	"060A": "no more data is available",
	"060B": "no more Z reports can be printed this day",
	"060C": "Z report could not be saved",
	"0701": "total must be greater than zero",
	"0801": "reached comment line number limit",
	"0901": "reached no sale document line number limit",
	"FFF0": "checksum error in set fiscal info command",
	"FFF1": "missing checksum in set fiscal info command",
	"FFFF": "unknown error",
}

// stateDescriptions maps the printer-reported state code to a description.
var stateDescriptions = map[string]string{
	"0":  "standby",
	"1":  "start of sale",
	"2":  "sale",
	"3":  "subtotal",
	"4":  "payment",
	"5":  "end of sale",
	"6":  "non fiscal",
	"7":  "reserved",
	"8":  "error",
	"9":  "start of return",
	"10": "return",
	"11": "reading fiscal info",
	"12": "storing logo",
	"13": "read only",
}

// Item entry types for the add-item command.
const (
	itemTypeNormal = "01"
	itemTypeVoid   = "02"
)

// Charge types for the discount/surcharge/service command.
const (
	chargeDiscount  = "0"
	chargeSurcharge = "1"
	chargeService   = "2"
)

// Payment entry types: "1" pays into the document, "0" voids a payment.
const (
	paymentTypePay  = "1"
	paymentTypeVoid = "0"
)
