package store

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- mapTransactionError Tests ---

func TestMapTransactionError_NilError(t *testing.T) {
	if err := mapTransactionError(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapTransactionError_NonTransactionError(t *testing.T) {
	original := errors.New("network error")
	if err := mapTransactionError(original); err != original {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestMapTransactionError_Reasons(t *testing.T) {
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: nil},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
	err := mapTransactionError(txErr)
	var canceled *TxCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TxCanceledError, got %v", err)
	}
	want := []string{ReasonNone, ReasonNone, ReasonConditionalFailed}
	for i, r := range want {
		if canceled.Reasons[i] != r {
			t.Errorf("reason %d: expected %q, got %q", i, r, canceled.Reasons[i])
		}
	}
	if canceled.FailedIndex() != 2 {
		t.Errorf("expected failed index 2, got %d", canceled.FailedIndex())
	}
}

// --- mapConditionError Tests ---

func TestMapConditionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"missing row", &types.ConditionalCheckFailedException{}, ErrNotFound},
		{"existing row", &types.ConditionalCheckFailedException{Item: map[string]types.AttributeValue{
			"partitionKey": &types.AttributeValueMemberS{Value: "x"},
		}}, ErrPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapConditionError(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// --- MapTxError Tests ---

func TestMapTxError_UnregisteredOrdinal(t *testing.T) {
	err := MapTxError(&TxCanceledError{Reasons: []string{ReasonNone, ReasonConditionalFailed}}, []error{errors.New("first"), nil})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

// --- cursor Tests ---

func TestCursorRoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		PartitionKey:   &types.AttributeValueMemberS{Value: "trending/1"},
		SortKey:        &types.AttributeValueMemberS{Value: "-"},
		"gsiK3SortKey": &types.AttributeValueMemberN{Value: "0.25"},
	}
	token, err := encodeCursor(key)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if Row(decoded).String(PartitionKey) != "trending/1" || Row(decoded).Float("gsiK3SortKey") != 0.25 {
		t.Errorf("unexpected decoded cursor %v", decoded)
	}
}

func TestDecodeCursor_Malformed(t *testing.T) {
	if _, err := decodeCursor("not base64!"); err == nil {
		t.Error("expected error for malformed cursor")
	}
}

// --- addNumbers Tests ---

func TestAddNumbers(t *testing.T) {
	tests := []struct{ a, b, want string }{
		{"1", "2", "3"},
		{"0", "-1", "-1"},
		{"0.5", "1", "1.5"},
		{"0.1", "0.2", "0.30000000000000004"},
	}
	for _, tt := range tests {
		if got := addNumbers(tt.a, tt.b); got != tt.want {
			t.Errorf("addNumbers(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

// --- buildExpression Tests ---

func TestBuildExpression_ConditionAndUpdate(t *testing.T) {
	expr, err := buildExpression(And(RowExists(), Gt("postCount", 0)), NewUpdate().Add("postCount", -1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if expr.Condition() == nil || expr.Update() == nil {
		t.Error("expected condition and update expressions")
	}
	if len(expr.Names()) != 2 {
		t.Errorf("expected 2 attribute names, got %d", len(expr.Names()))
	}
}

func TestBuildExpression_EmptyUpdate(t *testing.T) {
	if _, err := buildExpression(nil, NewUpdate()); err == nil {
		t.Error("expected error for empty update")
	}
}

func TestConfigValidate_Defaults(t *testing.T) {
	var c Config
	c.validate()
	if c.TableName != "real" {
		t.Errorf("expected default table name, got %q", c.TableName)
	}
	if c.BatchRetryMaxElapsed <= 0 {
		t.Error("expected positive retry budget")
	}
}
