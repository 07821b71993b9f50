package store

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TimeLayout is the fixed-width timestamp layout used for every time value
// written to the table, so that string comparison matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime or any RFC 3339 value.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Cond is a predicate over a single row, evaluated atomically with a write.
type Cond interface {
	isCond()
}

type cmpOp int

const (
	opEq cmpOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
	opBeginsWith
)

type existsCond struct {
	attr   string
	exists bool
}

type compareCond struct {
	attr  string
	op    cmpOp
	value any
}

type logicalCond struct {
	and   bool
	conds []Cond
}

type notCond struct {
	cond Cond
}

func (existsCond) isCond()  {}
func (compareCond) isCond() {}
func (logicalCond) isCond() {}
func (notCond) isCond()     {}

// Exists holds when attr is present.
func Exists(attr string) Cond { return existsCond{attr: attr, exists: true} }

// NotExists holds when attr is absent.
func NotExists(attr string) Cond { return existsCond{attr: attr} }

// RowExists holds when the row is present.
func RowExists() Cond { return Exists(PartitionKey) }

// RowNotExists holds when the row is absent.
func RowNotExists() Cond { return NotExists(PartitionKey) }

// Comparisons of attr against a literal. A missing attr never satisfies them.

func Eq(attr string, v any) Cond { return compareCond{attr: attr, op: opEq, value: v} }
func Ne(attr string, v any) Cond { return compareCond{attr: attr, op: opNe, value: v} }
func Lt(attr string, v any) Cond { return compareCond{attr: attr, op: opLt, value: v} }
func Le(attr string, v any) Cond { return compareCond{attr: attr, op: opLe, value: v} }
func Gt(attr string, v any) Cond { return compareCond{attr: attr, op: opGt, value: v} }
func Ge(attr string, v any) Cond { return compareCond{attr: attr, op: opGe, value: v} }

// BeginsWith holds when the string attribute starts with prefix.
func BeginsWith(attr, prefix string) Cond {
	return compareCond{attr: attr, op: opBeginsWith, value: prefix}
}

// In holds when attr equals any of the values.
func In(attr string, values ...any) Cond {
	conds := make([]Cond, len(values))
	for i, v := range values {
		conds[i] = Eq(attr, v)
	}
	return Or(conds...)
}

// And combines conditions; nil entries are dropped. And of nothing is nil.
func And(conds ...Cond) Cond {
	return combine(true, conds)
}

// Or combines conditions; nil entries are dropped. Or of nothing is nil.
func Or(conds ...Cond) Cond {
	return combine(false, conds)
}

// Not negates c.
func Not(c Cond) Cond {
	if c == nil {
		return nil
	}
	return notCond{cond: c}
}

func combine(and bool, conds []Cond) Cond {
	kept := make([]Cond, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return logicalCond{and: and, conds: kept}
}

// Marshal converts a Go value into an attribute value the way conditions
// and updates do.
func Marshal(v any) (types.AttributeValue, error) {
	return toAttributeValue(v)
}

// toAttributeValue converts a Go value into an attribute value. Times are
// written in TimeLayout.
func toAttributeValue(v any) (types.AttributeValue, error) {
	switch tv := v.(type) {
	case types.AttributeValue:
		return tv, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: FormatTime(tv)}, nil
	case *time.Time:
		if tv == nil {
			return &types.AttributeValueMemberNULL{Value: true}, nil
		}
		return &types.AttributeValueMemberS{Value: FormatTime(*tv)}, nil
	}
	return attributevalue.Marshal(v)
}
