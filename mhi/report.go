package mhi

import (
	"context"
	"errors"
	"fmt"
)

const reportDateLayout = "02012006" // DDMMYYYY

// PrintXReport prints the running totals of the open fiscal day. The
// counters are left untouched, so consecutive X reports are independent
// operations.
func (d *driver) PrintXReport(ctx context.Context) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	defer func() { d.state = StateIdle }()

	if _, err := d.tr.Send(ctx, "x report", buildFrame(cmdXReport)); err != nil {
		return nil, d.reportErr(ctx, "x report", err)
	}
	d.logf("x report printed")
	return &Result{ReportsCompleted: 1}, nil
}

// PrintZReport closes the fiscal day when closeDay is true, or prints a
// copy of the last closure when false. A second closing Z on an already
// closed day is refused by the printer and surfaces as a StateError.
func (d *driver) PrintZReport(ctx context.Context, closeDay bool) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	defer func() { d.state = StateIdle }()

	mode := "0"
	if closeDay {
		mode = "1"
	}
	param, _ := encodeText(mode)
	if _, err := d.tr.Send(ctx, "z report", buildFrame(cmdZReport, param)); err != nil {
		return nil, d.reportErr(ctx, "z report", err)
	}
	d.logf("z report printed (close day: %v)", closeDay)
	return &Result{ReportsCompleted: 1}, nil
}

// PrintZReportByDate reprints the archived Z closures falling inside the
// date range, one report at a time. The printer walks its own archive:
// the range is announced, each closure is fetched until the printer runs
// out, and the walk is closed.
func (d *driver) PrintZReportByDate(ctx context.Context, r DateRange) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return nil, &ValidationError{Field: "date_range", Reason: "start and end dates are required"}
	}
	if r.End.Before(r.Start) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date precedes start date"}
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	defer func() { d.state = StateIdle }()

	start, _ := encodeText(r.Start.Format(reportDateLayout))
	end, _ := encodeText(r.End.Format(reportDateLayout))
	reserved, _ := encodeText("0")
	if _, err := d.tr.Send(ctx, "z report range", buildFrame(cmdZByDate, reserved, start, end)); err != nil {
		return nil, d.reportErr(ctx, "z report range", err)
	}

	completed, err := d.walkZArchive(ctx)
	if err != nil {
		return nil, err
	}
	d.logf("z report range %s..%s: %d reports",
		r.Start.Format(reportDateLayout), r.End.Format(reportDateLayout), completed)
	return &Result{ReportsCompleted: completed}, nil
}

// PrintZReportByNumberRange reprints archived Z closures by closure
// number. Each number is announced and fetched individually; a number
// the printer refuses ends the run, and the result reports how many
// closures actually printed.
func (d *driver) PrintZReportByNumberRange(ctx context.Context, start, end int) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	if start <= 0 {
		return nil, &ValidationError{Field: "start", Reason: "closure numbers start at 1"}
	}
	if end < start {
		return nil, &ValidationError{Field: "end", Reason: "end precedes start"}
	}
	d.requireIdle(ctx)

	d.state = StateNonFiscalOp
	defer func() { d.state = StateIdle }()

	completed := 0
	for n := start; n <= end; n++ {
		number, _ := encodeText(fmt.Sprintf("%04d", n))
		if _, err := d.tr.Send(ctx, "z report by number", buildFrame(cmdZByNumber, number, number)); err != nil {
			if fatal := d.rangeStop(ctx, "z report by number", err); fatal != nil {
				return nil, fatal
			}
			break
		}
		printed, err := d.walkZArchive(ctx)
		if err != nil {
			return nil, err
		}
		if printed == 0 {
			break
		}
		completed += printed
	}
	d.logf("z reports %d..%d: %d printed", start, end, completed)
	return &Result{ReportsCompleted: completed}, nil
}

// walkZArchive fetches reports from an announced archive range until the
// printer signals exhaustion, then ends the walk.
func (d *driver) walkZArchive(ctx context.Context) (int, error) {
	completed := 0
	for {
		if _, err := d.tr.Send(ctx, "next z report", buildFrame(cmdZNext)); err != nil {
			if fatal := d.rangeStop(ctx, "next z report", err); fatal != nil {
				return 0, fatal
			}
			break
		}
		completed++
	}
	if _, err := d.tr.Send(ctx, "end z report walk", buildFrame(cmdZEnd)); err != nil {
		// The walk terminator is refused when the range was empty.
		if fatal := d.rangeStop(ctx, "end z report walk", err); fatal != nil {
			return 0, fatal
		}
	}
	return completed, nil
}

// rangeStop distinguishes the expected end-of-range rejection from a
// fatal transport failure. Rejections return nil so the caller can stop
// cleanly; anything else tears the session down.
func (d *driver) rangeStop(ctx context.Context, op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) && te.Kind == TransportRejected {
		return nil
	}
	return d.failOp(ctx, err)
}

// reportErr maps a persistent rejection of a one-shot report command to
// a StateError; transport failures pass through after cleanup.
func (d *driver) reportErr(ctx context.Context, op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) && te.Kind == TransportRejected {
		return d.stateErr(ctx, op, "printer refused the report")
	}
	return d.failOp(ctx, err)
}
