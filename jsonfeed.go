// Copyright (c) 2026 Quanta Exchange Contributors
//
// JSON line-delimited ingestion for records arriving from an external
// collaborator (the matching engine) that prefers JSON over the binary
// wire format. One JSON object per line, each carrying an "hd" header
// matching records.go's Header shape.

package qx

import (
	"bufio"
	"io"

	"github.com/valyala/fastjson"
)

///////////////////////////////////////////////////////////////////////////////

// JsonFeedScanner scans a series of newline-delimited JSON records.
type JsonFeedScanner struct {
	scanner *bufio.Scanner
}

// NewJsonFeedScanner creates a JsonFeedScanner over r.
func NewJsonFeedScanner(r io.Reader) *JsonFeedScanner {
	return &JsonFeedScanner{
		scanner: bufio.NewScanner(r),
	}
}

// Next reads the next line without parsing it; JsonFeedScannerDecode
// parses it. Returns true if a line was read; call Error to distinguish
// EOF (nil) from a read failure.
func (s *JsonFeedScanner) Next() bool {
	return s.scanner.Scan()
}

// Error returns the last error from Next.
func (s *JsonFeedScanner) Error() error {
	return s.scanner.Err()
}

// JsonFeedScannerDecode parses the scanner's current line as type R.
// Receiver methods cannot be generic, hence the free function.
func JsonFeedScannerDecode[R Record, RP RecordPtr[R]](s *JsonFeedScanner) (*R, error) {
	val, header, err := s.parseWithHeader()
	if err != nil {
		return nil, err
	}

	var rp RP = new(R)
	if header.Type != rp.Type() {
		return nil, unexpectedRecordTypeError(header.Type, rp.Type())
	}

	if err := rp.Fill_Json(val, header); err != nil {
		return nil, err
	}
	return rp, nil
}

// Visit parses the current line and dispatches it to visitor.
func (s *JsonFeedScanner) Visit(visitor Visitor) error {
	val, header, err := s.parseWithHeader()
	if err != nil {
		return err
	}
	return dispatchJsonVisitor(val, header, visitor)
}

///////////////////////////////////////////////////////////////////////////////

func (s *JsonFeedScanner) parseWithHeader() (*fastjson.Value, *Header, error) {
	var p fastjson.Parser
	val, err := p.ParseBytes(s.scanner.Bytes())
	if err != nil {
		return nil, nil, err
	}

	var header Header
	if err := FillHeader_Json(val.Get("hd"), &header); err != nil {
		return nil, nil, err
	}
	return val, &header, nil
}

func dispatchJsonVisitor(val *fastjson.Value, header *Header, visitor Visitor) error {
	switch header.Type {
	case RecordType_OrderInsert:
		var r OrderInsert
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnOrderInsert(&r)
	case RecordType_OrderStatus:
		var r OrderStatus
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnOrderStatus(&r)
	case RecordType_TradeExecuted:
		var r TradeExecuted
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnTradeExecuted(&r)
	case RecordType_AccountOpen:
		var r AccountOpen
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnAccountOpen(&r)
	case RecordType_AccountUpdate:
		var r AccountUpdate
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnAccountUpdate(&r)
	case RecordType_TickData:
		var r TickData
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnTickData(&r)
	case RecordType_OrderBookSnapshot:
		var r OrderBookSnapshot
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnOrderBookSnapshot(&r)
	case RecordType_OrderBookDelta:
		var r OrderBookDelta
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnOrderBookDelta(&r)
	case RecordType_KLineFinished:
		var r KLineFinished
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnKLineFinished(&r)
	case RecordType_ExchangeOrderRecord:
		var r ExchangeOrderRecord
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnExchangeOrderRecord(&r)
	case RecordType_ExchangeTradeRecord:
		var r ExchangeTradeRecord
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnExchangeTradeRecord(&r)
	case RecordType_ExchangeResponse:
		var r ExchangeResponse
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnExchangeResponse(&r)
	case RecordType_Checkpoint:
		var r Checkpoint
		if err := r.Fill_Json(val, header); err != nil {
			return err
		}
		return visitor.OnCheckpoint(&r)
	default:
		return ErrUnknownRecordType
	}
}

///////////////////////////////////////////////////////////////////////////////

// ReadJsonFeedToSlice reads an entire newline-delimited JSON stream,
// decoding every record of type R in order.
func ReadJsonFeedToSlice[R Record, RP RecordPtr[R]](reader io.Reader) ([]R, error) {
	records := make([]R, 0)
	scanner := NewJsonFeedScanner(reader)
	for scanner.Next() {
		r, err := JsonFeedScannerDecode[R, RP](scanner)
		if err != nil {
			return records, err
		}
		records = append(records, *r)
	}
	return records, scanner.Error()
}
