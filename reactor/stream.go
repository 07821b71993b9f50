package reactor

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/realsocial/real/internal/digest"
	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/store"
)

// StreamHandler feeds DynamoDB stream batches to a dispatcher.
type StreamHandler struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(d *Dispatcher, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{dispatcher: d, logger: logging.OrNop(logger)}
}

// Handle processes a batch in order. On the first failure it reports that
// record and every later one as failed, so Lambda retries from there and
// per-key ordering holds. Records already handled are skipped on retry.
func (h *StreamHandler) Handle(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for i, record := range event.Records {
		if err := h.dispatcher.Dispatch(ctx, ChangeFromRecord(record)); err != nil {
			h.logger.Error("failed to process record",
				zap.String("eventId", record.EventID),
				zap.String("sequenceNumber", record.Change.SequenceNumber),
				zap.Error(err),
			)
			for _, r := range event.Records[i:] {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
					ItemIdentifier: r.Change.SequenceNumber,
				})
			}
			return resp, nil
		}
	}
	return resp, nil
}

// ChangeFromRecord converts a stream record into a store change.
func ChangeFromRecord(record events.DynamoDBEventRecord) store.Change {
	key := ConvertImage(record.Change.Keys)
	c := store.Change{
		ID:  record.EventID,
		Key: store.Row(key).Key(),
	}
	if len(record.Change.OldImage) > 0 {
		c.Old = ConvertImage(record.Change.OldImage)
	}
	if len(record.Change.NewImage) > 0 {
		c.New = ConvertImage(record.Change.NewImage)
	}
	if c.ID == "" {
		c.ID = digest.EventID(c.Key.PK, c.Key.SK, record.Change.SequenceNumber, record.EventName)
	}
	return c
}

// ConvertImage converts a stream image to a row.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) store.Row {
	row := make(store.Row, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			row[k] = av
		}
	}
	return row
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, e := range list {
			if av := convertValue(e); av != nil {
				out = append(out, av)
			}
		}
		return &types.AttributeValueMemberL{Value: out}
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]types.AttributeValue, len(m))
		for k, e := range m {
			if av := convertValue(e); av != nil {
				out[k] = av
			}
		}
		return &types.AttributeValueMemberM{Value: out}
	}
	return nil
}
