// Copyright (c) 2026 Quanta Exchange Contributors

package qx

import (
	"bufio"
	"io"
)

// DefaultScanBufferSize sizes the scanner's underlying bufio.Reader.
const DefaultScanBufferSize = 16 * 1024

// MaxRecordSize bounds the largest fixed-layout record (OrderBookSnapshot).
const MaxRecordSize = OrderBookSnapshot_Size

// RecordSize returns the on-wire size of a record of the given type, and
// false if rt is not a known discriminant.
func RecordSize(rt RecordType) (int, bool) {
	switch rt {
	case RecordType_OrderInsert:
		return OrderInsert_Size, true
	case RecordType_OrderStatus:
		return OrderStatus_Size, true
	case RecordType_TradeExecuted:
		return TradeExecuted_Size, true
	case RecordType_AccountOpen:
		return AccountOpen_Size, true
	case RecordType_AccountUpdate:
		return AccountUpdate_Size, true
	case RecordType_TickData:
		return TickData_Size, true
	case RecordType_OrderBookSnapshot:
		return OrderBookSnapshot_Size, true
	case RecordType_OrderBookDelta:
		return OrderBookDelta_Size, true
	case RecordType_KLineFinished:
		return KLineFinished_Size, true
	case RecordType_ExchangeOrderRecord:
		return ExchangeOrderRecord_Size, true
	case RecordType_ExchangeTradeRecord:
		return ExchangeTradeRecord_Size, true
	case RecordType_ExchangeResponse:
		return ExchangeResponse_Size, true
	case RecordType_Checkpoint:
		return Checkpoint_Size, true
	default:
		return 0, false
	}
}

// RecordScanner scans a stream of framed binary records (a WAL segment,
// or any other writer using Header-prefixed fixed records). Each
// iteration of Next buffers one record for decode via
// RecordScannerDecode or dispatch via Visit.
type RecordScanner struct {
	buffReader *bufio.Reader
	lastError  error
	lastRecord []byte
	lastSize   int
}

// NewRecordScanner wraps sourceReader in a RecordScanner.
func NewRecordScanner(sourceReader io.Reader) *RecordScanner {
	return &RecordScanner{
		buffReader: bufio.NewReaderSize(sourceReader, DefaultScanBufferSize),
		lastRecord: make([]byte, MaxRecordSize),
	}
}

// Error returns the last error from Next. May be io.EOF.
func (s *RecordScanner) Error() error {
	return s.lastError
}

// GetLastHeader returns the Header of the last record read.
func (s *RecordScanner) GetLastHeader() (Header, error) {
	var h Header
	err := FillHeader_Raw(s.lastRecord[0:Header_Size], &h)
	return h, err
}

// GetLastRecord returns the raw bytes of the last record read.
func (s *RecordScanner) GetLastRecord() []byte {
	return s.lastRecord[0:s.lastSize]
}

// GetLastSize returns the byte size of the last record read.
func (s *RecordScanner) GetLastSize() int {
	return s.lastSize
}

// Next reads the next record's header, determines its size from the
// type discriminant, and buffers the full record body. It returns false
// on EOF or any read/corruption error (see Error).
func (s *RecordScanner) Next() bool {
	if _, err := io.ReadFull(s.buffReader, s.lastRecord[0:Header_Size]); err != nil {
		s.lastError = err
		s.lastSize = 0
		return false
	}

	rt := RecordType(s.lastRecord[0])
	size, ok := RecordSize(rt)
	if !ok {
		s.lastError = ErrUnknownRecordType
		s.lastSize = Header_Size
		return false
	}

	if n, err := io.ReadFull(s.buffReader, s.lastRecord[Header_Size:size]); err != nil {
		s.lastError = err
		s.lastSize = Header_Size + n
		return false
	}
	s.lastError = nil
	s.lastSize = size
	return true
}

// RecordScannerDecode decodes the scanner's current buffered record as
// type R, verifying that its on-wire discriminant matches R's. Receiver
// methods cannot be generic, hence the free function.
func RecordScannerDecode[R Record, RP RecordPtr[R]](s *RecordScanner) (*R, error) {
	if s.lastSize < Header_Size {
		return nil, ErrNoRecord
	}

	var rp RP = new(R)

	rt := RecordType(s.lastRecord[0])
	if rt != rp.Type() {
		return nil, unexpectedRecordTypeError(rt, rp.Type())
	}

	if err := rp.Fill_Raw(s.lastRecord[0:s.lastSize]); err != nil {
		return nil, err
	}
	return rp, nil
}

// Visit decodes the scanner's current buffered record and dispatches it
// to the matching Visitor method. A CorruptRecord error from Fill_Raw is
// returned as-is: callers decide whether to skip-and-resync or abort.
func (s *RecordScanner) Visit(visitor Visitor) error {
	if s.lastSize < Header_Size {
		return ErrNoRecord
	}

	switch rt := RecordType(s.lastRecord[0]); rt {
	case RecordType_OrderInsert:
		var r OrderInsert
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnOrderInsert(&r)
	case RecordType_OrderStatus:
		var r OrderStatus
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnOrderStatus(&r)
	case RecordType_TradeExecuted:
		var r TradeExecuted
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnTradeExecuted(&r)
	case RecordType_AccountOpen:
		var r AccountOpen
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnAccountOpen(&r)
	case RecordType_AccountUpdate:
		var r AccountUpdate
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnAccountUpdate(&r)
	case RecordType_TickData:
		var r TickData
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnTickData(&r)
	case RecordType_OrderBookSnapshot:
		var r OrderBookSnapshot
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnOrderBookSnapshot(&r)
	case RecordType_OrderBookDelta:
		var r OrderBookDelta
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnOrderBookDelta(&r)
	case RecordType_KLineFinished:
		var r KLineFinished
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnKLineFinished(&r)
	case RecordType_ExchangeOrderRecord:
		var r ExchangeOrderRecord
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnExchangeOrderRecord(&r)
	case RecordType_ExchangeTradeRecord:
		var r ExchangeTradeRecord
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnExchangeTradeRecord(&r)
	case RecordType_ExchangeResponse:
		var r ExchangeResponse
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnExchangeResponse(&r)
	case RecordType_Checkpoint:
		var r Checkpoint
		if err := r.Fill_Raw(s.lastRecord[:s.lastSize]); err != nil {
			return err
		}
		return visitor.OnCheckpoint(&r)
	default:
		return ErrUnknownRecordType
	}
}

// ReadRecordsToSlice scans the entire stream and decodes every record
// of type R, returning them in order. io.EOF is not propagated as an
// error.
func ReadRecordsToSlice[R Record, RP RecordPtr[R]](reader io.Reader) ([]R, error) {
	records := make([]R, 0)
	scanner := NewRecordScanner(reader)
	for scanner.Next() {
		r, err := RecordScannerDecode[R, RP](scanner)
		if err != nil {
			return records, err
		}
		records = append(records, *r)
	}
	err := scanner.Error()
	if err == io.EOF {
		err = nil
	}
	return records, err
}
