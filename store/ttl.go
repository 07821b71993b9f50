package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TTLAttribute is the epoch-seconds attribute reaped by DynamoDB TTL.
const TTLAttribute = "ttl"

// TTLValue returns the attribute value expiring a row at t.
func TTLValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

// IsExpired reports whether the row carries a TTL at or before now. Reaping
// is lazy, so expired rows may still be read.
func IsExpired(row Row, now time.Time) bool {
	if !row.Has(TTLAttribute) {
		return false
	}
	return row.Int(TTLAttribute) <= now.Unix()
}

// Live holds for rows without a TTL or whose TTL is after now.
func Live(now time.Time) Cond {
	return Or(NotExists(TTLAttribute), Gt(TTLAttribute, now.Unix()))
}
