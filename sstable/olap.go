// Copyright (c) 2026 Quanta Exchange Contributors
//
// OLAP SSTable runs are Parquet files, one schema (and one file) per
// qx.RecordType, following the teacher's internal/file/parquet_writer.go
// pattern of an explicit GroupNode plus per-column WriteBatch calls
// rather than a reflection-based generic column builder.

package sstable

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/memtable"
)

// ParquetGroupNodeForRecordType returns the row schema for rt, or nil
// if rt has no OLAP representation.
func ParquetGroupNodeForRecordType(rt qx.RecordType) *pqschema.GroupNode {
	switch rt {
	case qx.RecordType_TickData:
		return parquetGroupNodeTickData()
	case qx.RecordType_KLineFinished:
		return parquetGroupNodeKLineFinished()
	case qx.RecordType_TradeExecuted:
		return parquetGroupNodeTradeExecuted()
	case qx.RecordType_OrderBookDelta:
		return parquetGroupNodeOrderBookDelta()
	default:
		return nil
	}
}

// WriteOLAPRun writes rows (all sharing record type rt, as produced by
// one memtable.OLAP.RowsByType call) to path as a single-row-group
// Parquet file.
func WriteOLAPRun(path string, rt qx.RecordType, rows []memtable.Row) error {
	groupNode := ParquetGroupNodeForRecordType(rt)
	if groupNode == nil {
		return fmt.Errorf("sstable: no OLAP schema for record type %s", rt)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	pw := pqfile.NewParquetWriter(f, groupNode, pqfile.WithWriterProps(props))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	for _, row := range rows {
		if err := writeOLAPRow(rgw, rt, row); err != nil {
			rgw.Close()
			return err
		}
	}
	rgw.Close()
	return pw.FlushWithFooter()
}

func writeOLAPRow(rgw pqfile.BufferedRowGroupWriter, rt qx.RecordType, row memtable.Row) error {
	switch rt {
	case qx.RecordType_TickData:
		var rec qx.TickData
		if err := rec.Fill_Raw(row.Raw); err != nil {
			return err
		}
		writeTickDataRow(rgw, &rec)
	case qx.RecordType_KLineFinished:
		var rec qx.KLineFinished
		if err := rec.Fill_Raw(row.Raw); err != nil {
			return err
		}
		writeKLineFinishedRow(rgw, &rec)
	case qx.RecordType_TradeExecuted:
		var rec qx.TradeExecuted
		if err := rec.Fill_Raw(row.Raw); err != nil {
			return err
		}
		writeTradeExecutedRow(rgw, &rec)
	case qx.RecordType_OrderBookDelta:
		var rec qx.OrderBookDelta
		if err := rec.Fill_Raw(row.Raw); err != nil {
			return err
		}
		writeOrderBookDeltaRow(rgw, &rec)
	default:
		return fmt.Errorf("sstable: no OLAP writer for record type %s", rt)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_TickData:
//
//	optional int64 field_id=-1 ts_event;
//	optional binary field_id=-1 instrument_id (String);
//	optional double field_id=-1 last_price;
//	optional double field_id=-1 bid_price;
//	optional double field_id=-1 ask_price;
//	optional int64 field_id=-1 volume;
func parquetGroupNodeTickData() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.NewInt64Node("ts_event", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("instrument_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("last_price", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("bid_price", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("ask_price", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("volume", parquet.Repetitions.Optional, -1),
	}, -1))
}

func writeTickDataRow(rgw pqfile.BufferedRowGroupWriter, r *qx.TickData) {
	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Header.TimestampNs}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.InstrumentID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.LastPrice)}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.BidPrice)}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.AskPrice)}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Volume}, []int16{1}, nil)
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_KLineFinished:
//
//	optional int64 field_id=-1 ts_event;
//	optional binary field_id=-1 instrument_id (String);
//	optional int64 field_id=-1 kline_id;
//	optional int64 field_id=-1 duration_ns;
//	optional double field_id=-1 open;
//	optional double field_id=-1 high;
//	optional double field_id=-1 low;
//	optional double field_id=-1 close;
//	optional int64 field_id=-1 volume;
func parquetGroupNodeKLineFinished() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.NewInt64Node("ts_event", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("instrument_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewInt64Node("kline_id", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("duration_ns", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("open", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("high", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("low", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("close", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("volume", parquet.Repetitions.Optional, -1),
	}, -1))
}

func writeKLineFinishedRow(rgw pqfile.BufferedRowGroupWriter, r *qx.KLineFinished) {
	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Header.TimestampNs}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.InstrumentID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.KLineID}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.DurationNs}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.Open)}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.High)}, []int16{1}, nil)
	cw, _ = rgw.Column(6)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.Low)}, []int16{1}, nil)
	cw, _ = rgw.Column(7)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.Close)}, []int16{1}, nil)
	cw, _ = rgw.Column(8)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Volume}, []int16{1}, nil)
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_TradeExecuted:
//
//	optional int64 field_id=-1 ts_event;
//	optional binary field_id=-1 instrument_id (String);
//	optional binary field_id=-1 buy_order_id (String);
//	optional binary field_id=-1 sell_order_id (String);
//	optional double field_id=-1 price;
//	optional int64 field_id=-1 volume;
//	optional int64 field_id=-1 trade_id (Int(bitWidth=64, isSigned=false));
func parquetGroupNodeTradeExecuted() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.NewInt64Node("ts_event", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("instrument_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("buy_order_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("sell_order_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("price", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("volume", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("trade_id", parquet.Repetitions.Optional, pqschema.NewIntLogicalType(64, false), parquet.Types.Int64, 0, -1)),
	}, -1))
}

func writeTradeExecutedRow(rgw pqfile.BufferedRowGroupWriter, r *qx.TradeExecuted) {
	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Header.TimestampNs}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.InstrumentID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.BuyOrderID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.SellOrderID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.Price)}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Volume}, []int16{1}, nil)
	cw, _ = rgw.Column(6)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{int64(r.TradeID)}, []int16{1}, nil)
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_OrderBookDelta:
//
//	optional int64 field_id=-1 ts_event;
//	optional binary field_id=-1 instrument_id (String);
//	optional double field_id=-1 price;
//	optional int64 field_id=-1 volume;
//	optional binary field_id=-1 direction (String);
func parquetGroupNodeOrderBookDelta() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.NewInt64Node("ts_event", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("instrument_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("price", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("volume", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("direction", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
	}, -1))
}

func writeOrderBookDeltaRow(rgw pqfile.BufferedRowGroupWriter, r *qx.OrderBookDelta) {
	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Header.TimestampNs}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(qx.TrimNullBytes(r.InstrumentID[:]))}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{qx.Fixed9ToFloat64(r.Price)}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{r.Volume}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{{byte(r.Direction)}}, []int16{1}, nil)
}
