package reactor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/reactor"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newDispatcher(t *testing.T) *reactor.Dispatcher {
	t.Helper()
	repos := repo.New(store.NewMemory())
	return reactor.NewDispatcher(repos.Processed, reactor.Options{Now: func() time.Time { return t0 }})
}

func postChange(id string) store.Change {
	key := schema.PostKey("p1")
	return store.Change{ID: id, Key: key, New: store.Row(key.Attrs())}
}

func TestDispatcher_RetriesOnlyFailedHandlers(t *testing.T) {
	d := newDispatcher(t)
	calls := map[string]int{}
	failing := errors.New("downstream unavailable")
	d.On(schema.KindPost, "first", func(context.Context, *reactor.Event) error {
		calls["first"]++
		return nil
	})
	d.On(schema.KindPost, "second", func(context.Context, *reactor.Event) error {
		calls["second"]++
		if calls["second"] == 1 {
			return failing
		}
		return nil
	})

	ctx := context.Background()
	err := d.Dispatch(ctx, postChange("e1"))
	require.ErrorIs(t, err, failing)
	assert.Equal(t, map[string]int{"first": 1, "second": 1}, calls)

	require.NoError(t, d.Dispatch(ctx, postChange("e1")))
	assert.Equal(t, map[string]int{"first": 1, "second": 2}, calls)

	require.NoError(t, d.Dispatch(ctx, postChange("e1")))
	assert.Equal(t, map[string]int{"first": 1, "second": 2}, calls)

	require.NoError(t, d.Dispatch(ctx, postChange("e2")))
	assert.Equal(t, map[string]int{"first": 2, "second": 3}, calls)
}

func TestDispatcher_SoftFailuresAreHandled(t *testing.T) {
	for _, soft := range []error{store.ErrCounterUnderflow, store.ErrNotFound} {
		t.Run(soft.Error(), func(t *testing.T) {
			d := newDispatcher(t)
			calls := 0
			d.On(schema.KindPost, "counter", func(context.Context, *reactor.Event) error {
				calls++
				return soft
			})
			ctx := context.Background()
			require.NoError(t, d.Dispatch(ctx, postChange("e1")))
			require.NoError(t, d.Dispatch(ctx, postChange("e1")))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDispatcher_FiltersAndUnknownKeys(t *testing.T) {
	d := newDispatcher(t)
	var ops []reactor.Op
	d.On(schema.KindPost, "deletes", func(_ context.Context, e *reactor.Event) error {
		ops = append(ops, e.Op())
		return nil
	}, reactor.Deletes)

	ctx := context.Background()
	key := schema.PostKey("p1")
	require.NoError(t, d.Dispatch(ctx, postChange("create")))
	require.NoError(t, d.Dispatch(ctx, store.Change{ID: "delete", Key: key, Old: store.Row(key.Attrs())}))
	require.NoError(t, d.Dispatch(ctx, store.Change{ID: "junk", Key: store.Key{PK: "nope", SK: "nope"}}))
	assert.Equal(t, []reactor.Op{reactor.OpDelete}, ops)
	assert.True(t, d.Handles(schema.KindPost))
	assert.False(t, d.Handles(schema.KindChat))
}

func streamRecord(seq, postID string) events.DynamoDBEventRecord {
	key := schema.PostKey(postID)
	keys := map[string]events.DynamoDBAttributeValue{
		store.PartitionKey: events.NewStringAttribute(key.PK),
		store.SortKey:      events.NewStringAttribute(key.SK),
	}
	image := map[string]events.DynamoDBAttributeValue{
		store.PartitionKey: events.NewStringAttribute(key.PK),
		store.SortKey:      events.NewStringAttribute(key.SK),
		"viewedByCount":    events.NewNumberAttribute("3"),
		"keywords":         events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("sun")}),
		"likesDisabled":    events.NewBooleanAttribute(true),
	}
	return events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			Keys:           keys,
			NewImage:       image,
			SequenceNumber: seq,
		},
	}
}

func TestChangeFromRecord(t *testing.T) {
	c := reactor.ChangeFromRecord(streamRecord("100", "p1"))

	assert.Equal(t, schema.PostKey("p1"), c.Key)
	assert.Nil(t, c.Old)
	assert.EqualValues(t, 3, c.New.Int("viewedByCount"))
	assert.True(t, c.New.Bool("likesDisabled"))
	assert.Contains(t, c.New, "keywords")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, c.ID, reactor.ChangeFromRecord(streamRecord("100", "p1")).ID)
	assert.NotEqual(t, c.ID, reactor.ChangeFromRecord(streamRecord("101", "p1")).ID)
}

func TestStreamHandler_FailsFromFirstFailedRecord(t *testing.T) {
	d := newDispatcher(t)
	var seen []string
	d.On(schema.KindPost, "record", func(_ context.Context, e *reactor.Event) error {
		seen = append(seen, e.Ref.ID())
		if e.Ref.ID() == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	h := reactor.NewStreamHandler(d, nil)

	batch := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("1", "good"),
		streamRecord("2", "bad"),
		streamRecord("3", "later"),
	}}
	resp, err := h.Handle(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []string{"good", "bad"}, seen)
	assert.Equal(t, []events.DynamoDBBatchItemFailure{
		{ItemIdentifier: "2"},
		{ItemIdentifier: "3"},
	}, resp.BatchItemFailures)

	resp, err = h.Handle(context.Background(), events.DynamoDBEvent{Records: batch.Records[:1]})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []string{"good", "bad"}, seen)
}
