package mhi

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestPrintXReportTwiceIsIndependent(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	for i := 0; i < 2; i++ {
		res, err := drv.PrintXReport(context.Background())
		if err != nil {
			t.Fatalf("x report %d: %v", i+1, err)
		}
		if res.ReportsCompleted != 1 {
			t.Errorf("x report %d completed %d", i+1, res.ReportsCompleted)
		}
	}
	if len(mock.calls) != 2 {
		t.Errorf("commands %v, want two x reports", mock.calls)
	}
}

func TestPrintZReportTwiceIsStateError(t *testing.T) {
	mock := &mockTransport{}
	zCalls := 0
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "z report":
			zCalls++
			if zCalls > 1 {
				return nil, rejected(op)
			}
			return []byte{ack}, nil
		case "printer state":
			// 1547 decimal is response code 060B.
			return answer("1547", "0"), nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	if _, err := drv.PrintZReport(context.Background(), true); err != nil {
		t.Fatalf("first z report: %v", err)
	}

	_, err := drv.PrintZReport(context.Background(), true)
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("second z report error type %T", err)
	}
	if se.Code != "060B" {
		t.Errorf("state error code %q, want 060B", se.Code)
	}

	st, serr := drv.GetStatus(context.Background())
	if serr != nil {
		t.Fatalf("GetStatus: %v", serr)
	}
	if st.State != StateIdle {
		t.Errorf("session state %v after refused z report, want idle", st.State)
	}
	if !st.Connected {
		t.Error("session dropped after a refused z report")
	}
}

func TestPrintZReportCopyMode(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	if _, err := drv.PrintZReport(context.Background(), false); err != nil {
		t.Fatalf("z copy: %v", err)
	}
	frame := mock.frames[0]
	// STX code FS mode ETX: the mode field selects copy ("0") vs close ("1").
	if frame[3] != '0' {
		t.Errorf("z copy sent mode %q, want '0'", frame[3])
	}
}

func TestPrintZReportByDateWalksArchive(t *testing.T) {
	mock := &mockTransport{}
	next := 0
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "next z report":
			next++
			if next > 3 {
				return nil, rejected(op)
			}
			return []byte{ack}, nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 8, 3, 0, 0, 0, 0, time.Local)
	res, err := drv.PrintZReportByDate(context.Background(), DateRange{Start: start, End: end})
	if err != nil {
		t.Fatalf("z by date: %v", err)
	}
	if res.ReportsCompleted != 3 {
		t.Errorf("completed %d reports, want 3", res.ReportsCompleted)
	}
	if mock.calls[0] != "z report range" {
		t.Errorf("first command %q", mock.calls[0])
	}
	want := []byte{stx, 0x74, fs, '0', fs}
	want = append(want, "01082026"...)
	want = append(want, fs)
	want = append(want, "03082026"...)
	want = append(want, etx)
	if !bytes.Equal(mock.frames[0], want) {
		t.Errorf("range frame % X, want % X", mock.frames[0], want)
	}
	if mock.calls[len(mock.calls)-1] != "end z report walk" {
		t.Errorf("last command %q", mock.calls[len(mock.calls)-1])
	}
}

func TestPrintZReportByDateRejectsInvertedRange(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	_, err := drv.PrintZReportByDate(context.Background(), DateRange{Start: start, End: end})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type %T", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("inverted range issued commands: %v", mock.calls)
	}
}

func TestPrintZReportByNumberRangeStopsAtFirstRefusal(t *testing.T) {
	mock := &mockTransport{}
	inits := 0
	walked := 0
	mock.OnSend = func(op string, frame []byte) ([]byte, error) {
		switch op {
		case "fiscal info":
			return fiscalInfoAnswer(), nil
		case "z report by number":
			inits++
			// Closures 3 and 4 exist, 5 is past the archive.
			if inits > 2 {
				return nil, rejected(op)
			}
			walked = 0
			return []byte{ack}, nil
		case "next z report":
			walked++
			if walked > 1 {
				return nil, rejected(op)
			}
			return []byte{ack}, nil
		default:
			return []byte{ack}, nil
		}
	}
	drv := connectedDriver(t, mock)

	res, err := drv.PrintZReportByNumberRange(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("z by number: %v", err)
	}
	if res.ReportsCompleted != 2 {
		t.Errorf("completed %d reports, want 2", res.ReportsCompleted)
	}
	if inits != 3 {
		t.Errorf("announced %d closures, want 3 (two printed, one refused)", inits)
	}
	// Closure numbers travel as 4-digit zero-padded fields.
	want := []byte{stx, 0x75, fs, '0', '0', '0', '3', fs, '0', '0', '0', '3', etx}
	if !bytes.Equal(mock.frames[0], want) {
		t.Errorf("first init frame % X, want % X", mock.frames[0], want)
	}
}

func TestPrintZReportByNumberRangeValidation(t *testing.T) {
	mock := &mockTransport{}
	drv := connectedDriver(t, mock)

	if _, err := drv.PrintZReportByNumberRange(context.Background(), 0, 5); err == nil {
		t.Error("zero start accepted")
	}
	if _, err := drv.PrintZReportByNumberRange(context.Background(), 5, 3); err == nil {
		t.Error("inverted range accepted")
	}
	if len(mock.calls) != 0 {
		t.Errorf("invalid ranges issued commands: %v", mock.calls)
	}
}

func TestReportsRequireConnection(t *testing.T) {
	drv, err := NewWithTransport(testConfig(), &mockTransport{})
	if err != nil {
		t.Fatalf("NewWithTransport: %v", err)
	}
	if _, err := drv.PrintXReport(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("x report on a cold session: %v", err)
	}
	if _, err := drv.PrintZReport(context.Background(), true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("z report on a cold session: %v", err)
	}
}
