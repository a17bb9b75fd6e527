package resource

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire schema of a slot-assignment snapshot. The snapshot is a standard
// protobuf message so that adjacent cluster components can decode it with a
// matching schema:
//
//	message ResourceIdSetInfo {
//	  string   resource_name      = 1;
//	  repeated sint64 resource_ids       = 2 [packed = true];
//	  repeated double resource_fractions = 3 [packed = true];
//	}
//
//	message ResourceIdSetInfos {
//	  repeated ResourceIdSetInfo records = 1;
//	}
//
// Each record carries parallel arrays: whole slots appear first with
// fraction exactly 1, followed by fractional slots with their residuals.
const (
	recordsFieldNumber   protowire.Number = 1
	nameFieldNumber      protowire.Number = 1
	idsFieldNumber       protowire.Number = 2
	fractionsFieldNumber protowire.Number = 3
)

// ResourceIdRecord is the decoded form of one serialized record: a resource
// name with parallel slot-id and fraction arrays.
type ResourceIdRecord struct {
	Name      string
	Ids       []int64
	Fractions []float64
}

// ToRecords flattens the set into serialization records, one per resource
// in sorted name order. Within a record, whole ids come first with fraction
// 1, then fractional ids with their residuals.
func (s *ResourceIdSet) ToRecords() []ResourceIdRecord {
	names := make([]string, 0, len(s.availableResources))
	for name := range s.availableResources {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]ResourceIdRecord, 0, len(names))
	for _, name := range names {
		ids := s.availableResources[name]
		record := ResourceIdRecord{
			Name:      name,
			Ids:       make([]int64, 0, len(ids.wholeIds)+len(ids.fractionalIds)),
			Fractions: make([]float64, 0, len(ids.wholeIds)+len(ids.fractionalIds)),
		}

		for _, wholeId := range ids.wholeIds {
			record.Ids = append(record.Ids, wholeId)
			record.Fractions = append(record.Fractions, 1)
		}
		for _, fractional := range ids.fractionalIds {
			record.Ids = append(record.Ids, fractional.Id)
			record.Fractions = append(record.Fractions, fractional.Residual.InexactFloat64())
		}

		records = append(records, record)
	}
	return records
}

// Serialize emits the set as the wire message documented above. The caller
// is responsible for ensuring the set is not mutated concurrently; the
// snapshot is taken in a single pass.
func (s *ResourceIdSet) Serialize() []byte {
	var out []byte
	for _, record := range s.ToRecords() {
		out = protowire.AppendTag(out, recordsFieldNumber, protowire.BytesType)
		out = protowire.AppendBytes(out, appendRecord(nil, record))
	}
	return out
}

func appendRecord(buf []byte, record ResourceIdRecord) []byte {
	buf = protowire.AppendTag(buf, nameFieldNumber, protowire.BytesType)
	buf = protowire.AppendString(buf, record.Name)

	if len(record.Ids) > 0 {
		var packed []byte
		for _, id := range record.Ids {
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(id))
		}
		buf = protowire.AppendTag(buf, idsFieldNumber, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}

	if len(record.Fractions) > 0 {
		var packed []byte
		for _, fraction := range record.Fractions {
			packed = protowire.AppendFixed64(packed, math.Float64bits(fraction))
		}
		buf = protowire.AppendTag(buf, fractionsFieldNumber, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}

	return buf
}

// DecodeResourceIdRecords parses a serialized snapshot back into records.
func DecodeResourceIdRecords(data []byte) ([]ResourceIdRecord, error) {
	var records []ResourceIdRecord

	for len(data) > 0 {
		number, wireType, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("malformed snapshot: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if number != recordsFieldNumber || wireType != protowire.BytesType {
			return nil, fmt.Errorf("malformed snapshot: unexpected field %d (wire type %d)", number, wireType)
		}

		body, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("malformed snapshot: %w", protowire.ParseError(n))
		}
		data = data[n:]

		record, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func decodeRecord(body []byte) (ResourceIdRecord, error) {
	var record ResourceIdRecord

	for len(body) > 0 {
		number, wireType, n := protowire.ConsumeTag(body)
		if n < 0 {
			return record, fmt.Errorf("malformed record: %w", protowire.ParseError(n))
		}
		body = body[n:]

		if wireType != protowire.BytesType {
			return record, fmt.Errorf("malformed record: unexpected wire type %d for field %d", wireType, number)
		}

		payload, n := protowire.ConsumeBytes(body)
		if n < 0 {
			return record, fmt.Errorf("malformed record: %w", protowire.ParseError(n))
		}
		body = body[n:]

		switch number {
		case nameFieldNumber:
			record.Name = string(payload)
		case idsFieldNumber:
			for len(payload) > 0 {
				raw, n := protowire.ConsumeVarint(payload)
				if n < 0 {
					return record, fmt.Errorf("malformed slot id: %w", protowire.ParseError(n))
				}
				payload = payload[n:]
				record.Ids = append(record.Ids, protowire.DecodeZigZag(raw))
			}
		case fractionsFieldNumber:
			for len(payload) > 0 {
				raw, n := protowire.ConsumeFixed64(payload)
				if n < 0 {
					return record, fmt.Errorf("malformed fraction: %w", protowire.ParseError(n))
				}
				payload = payload[n:]
				record.Fractions = append(record.Fractions, math.Float64frombits(raw))
			}
		default:
			// Unknown length-delimited fields are skipped for forward
			// compatibility; other wire types are rejected above.
		}
	}

	return record, nil
}
