package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Primary key attribute names shared by every row in the table.
const (
	PartitionKey = "partitionKey"
	SortKey      = "sortKey"
)

// Secondary index names. A1..A3 and K1..K2 have string sort keys, K3 has a
// numeric sort key.
const (
	IndexA1 = "GSI-A1"
	IndexA2 = "GSI-A2"
	IndexA3 = "GSI-A3"
	IndexK1 = "GSI-K1"
	IndexK2 = "GSI-K2"
	IndexK3 = "GSI-K3"
)

// Indexes lists every secondary index of the table.
var Indexes = []string{IndexA1, IndexA2, IndexA3, IndexK1, IndexK2, IndexK3}

// IndexAttrs returns the partition and sort key attribute names of an index.
// The empty index name denotes the primary key.
func IndexAttrs(index string) (pk, sk string) {
	switch index {
	case "":
		return PartitionKey, SortKey
	case IndexA1:
		return "gsiA1PartitionKey", "gsiA1SortKey"
	case IndexA2:
		return "gsiA2PartitionKey", "gsiA2SortKey"
	case IndexA3:
		return "gsiA3PartitionKey", "gsiA3SortKey"
	case IndexK1:
		return "gsiK1PartitionKey", "gsiK1SortKey"
	case IndexK2:
		return "gsiK2PartitionKey", "gsiK2SortKey"
	case IndexK3:
		return "gsiK3PartitionKey", "gsiK3SortKey"
	}
	return "", ""
}

// Key is the composite primary key of a row.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string {
	return k.PK + "|" + k.SK
}

// Attrs returns the key as attribute values.
func (k Key) Attrs() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		PartitionKey: &types.AttributeValueMemberS{Value: k.PK},
		SortKey:      &types.AttributeValueMemberS{Value: k.SK},
	}
}

// Row is a single item of the table.
type Row map[string]types.AttributeValue

// Key extracts the primary key of the row.
func (r Row) Key() Key {
	return Key{PK: r.String(PartitionKey), SK: r.String(SortKey)}
}

// String returns a string attribute, or "" if absent or not a string.
func (r Row) String(attr string) string {
	if v, ok := r[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// Int returns a numeric attribute as int64, or 0 if absent.
func (r Row) Int(attr string) int64 {
	if v, ok := r[attr].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			f, _ := strconv.ParseFloat(v.Value, 64)
			return int64(f)
		}
		return n
	}
	return 0
}

// Float returns a numeric attribute as float64, or 0 if absent.
func (r Row) Float(attr string) float64 {
	if v, ok := r[attr].(*types.AttributeValueMemberN); ok {
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	}
	return 0
}

// Bool returns a boolean attribute, or false if absent.
func (r Row) Bool(attr string) bool {
	if v, ok := r[attr].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

// Has reports whether the attribute is present.
func (r Row) Has(attr string) bool {
	_, ok := r[attr]
	return ok
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v types.AttributeValue) types.AttributeValue {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: tv.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: tv.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: tv.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: tv.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), tv.Value...)}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(tv.Value))
		for i, e := range tv.Value {
			l[i] = cloneValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		m := make(map[string]types.AttributeValue, len(tv.Value))
		for k, e := range tv.Value {
			m[k] = cloneValue(e)
		}
		return &types.AttributeValueMemberM{Value: m}
	}
	return v
}

// Change is one entry of the change stream: the images of a single row
// before and after a committed write. Old is nil for inserts and New is nil
// for removals.
type Change struct {
	ID  string
	Key Key
	Old Row
	New Row
}
