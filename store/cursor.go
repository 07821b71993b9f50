package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// cursorValue is the wire form of one key attribute inside a page cursor.
type cursorValue struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
}

// encodeCursor renders the last evaluated key of a page as an opaque token.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	wire := make(map[string]cursorValue, len(key))
	for name, v := range key {
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			s := tv.Value
			wire[name] = cursorValue{S: &s}
		case *types.AttributeValueMemberN:
			n := tv.Value
			wire[name] = cursorValue{N: &n}
		default:
			return "", fmt.Errorf("store: cursor attribute %q has unsupported type %T", name, v)
		}
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// decodeCursor parses a token produced by encodeCursor.
func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("store: malformed cursor: %w", err)
	}
	var wire map[string]cursorValue
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("store: malformed cursor: %w", err)
	}
	key := make(map[string]types.AttributeValue, len(wire))
	for name, v := range wire {
		switch {
		case v.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *v.S}
		case v.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *v.N}
		default:
			return nil, fmt.Errorf("store: malformed cursor attribute %q", name)
		}
	}
	return key, nil
}
