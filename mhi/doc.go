// Package mhi implements the MHI fiscal printer protocol used by the
// CTS310ii, Star and Citizen receipt printers. It covers the serial
// transport and byte framing, the fiscal document lifecycle (prepare,
// items, totals, payments, close), X/Z reports with date and number
// range variants, document reprint and no-sale documents.
//
// Key features:
//   - Serial transport with port auto-discovery, bounded retries and
//     per-command timeouts
//   - Document state machine that never leaves the printer mid-document:
//     every failed sequence ends with a best-effort cancel
//   - Structured error taxonomy: validation, transport, state and
//     configuration errors are distinguishable by type
//   - Injectable Transport for testing without hardware
//
// Example usage:
//
//	drv, err := mhi.New(mhi.Config{
//	    Port:      "COM3",
//	    Brand:     mhi.BrandCTS310II,
//	    Numbering: fiscal.Numbering{Source: "A", RegistrationID: "122202235", RegisterID: "11"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := drv.Connect(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Disconnect()
//
//	res, err := drv.PrintDocument(context.Background(), tx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("printed", res.DocumentNumber)
//
// The three supported printer brands share one command set and differ only
// in identity data (name, pre-provisioned tax table, paper width), so the
// brand is carried as a plain Brand value rather than separate drivers.
package mhi
