//go:build e2e

// Package e2e runs the store, managers and dispatcher against a real
// DynamoDB table, or DynamoDB Local when DYNAMO_ENDPOINT is set.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/collab/collabtest"
	"github.com/realsocial/real/config"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/reactor"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

const tablePrefix = "real-e2e-test"

var (
	cfg       config.Config
	ddbClient *dynamodb.Client
	testStore *store.Dynamo
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.TableName = fmt.Sprintf("%s-%s", tablePrefix, uuid.New().String()[:8])
	fmt.Printf("Table: %s\n", cfg.TableName)

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.DynamoEndpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})

	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	storeCfg := store.DefaultConfig()
	storeCfg.TableName = cfg.TableName
	storeCfg.ConsistentReads = true
	testStore = store.NewDynamo(ddbClient, storeCfg)

	code := m.Run()

	if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(cfg.TableName)}); err != nil {
		fmt.Printf("Warning: failed to delete table %s: %v\n", cfg.TableName, err)
	}
	os.Exit(code)
}

func createTable(ctx context.Context) error {
	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(store.PartitionKey), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String(store.SortKey), AttributeType: types.ScalarAttributeTypeS},
	}
	var gsis []types.GlobalSecondaryIndex
	for _, index := range store.Indexes {
		pk, sk := store.IndexAttrs(index)
		skType := types.ScalarAttributeTypeS
		if index == store.IndexK3 {
			skType = types.ScalarAttributeTypeN
		}
		attrs = append(attrs,
			types.AttributeDefinition{AttributeName: aws.String(pk), AttributeType: types.ScalarAttributeTypeS},
			types.AttributeDefinition{AttributeName: aws.String(sk), AttributeType: skType},
		)
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(index),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(cfg.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(store.PartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(store.SortKey), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions:   attrs,
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", cfg.TableName, err)
	}
	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)}, 2*time.Minute)
}

func row(t *testing.T, key store.Key, attrs map[string]any) store.Row {
	t.Helper()
	r := store.Row(key.Attrs())
	for name, v := range attrs {
		av, err := store.Marshal(v)
		require.NoError(t, err)
		r[name] = av
	}
	return r
}

func uniqueKey(kind string) store.Key {
	id := uuid.New().String()
	return store.Key{PK: kind + "/" + id, SK: "-"}
}

// --- Store ---

func TestStore_AddIsConditional(t *testing.T) {
	ctx := context.Background()
	key := uniqueKey("e2e")

	require.NoError(t, testStore.Add(ctx, row(t, key, map[string]any{"n": 1})))
	err := testStore.Add(ctx, row(t, key, map[string]any{"n": 2}))
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := testStore.Get(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Int("n"))
}

func TestStore_UpdateMissingAndPrecondition(t *testing.T) {
	ctx := context.Background()
	key := uniqueKey("e2e")

	_, err := testStore.Update(ctx, key, store.NewUpdate().Set("a", "b"), store.RowExists())
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, testStore.Add(ctx, row(t, key, map[string]any{"status": "PENDING"})))
	_, err = testStore.Update(ctx, key, store.NewUpdate().Set("status", "ARCHIVED"), store.Eq("status", "COMPLETED"))
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	updated, err := testStore.Update(ctx, key, store.NewUpdate().Set("status", "COMPLETED"), store.Eq("status", "PENDING"))
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", updated.String("status"))
}

func TestStore_CounterNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	key := uniqueKey("e2e")
	require.NoError(t, testStore.Add(ctx, row(t, key, nil)))

	_, err := store.Decrement(ctx, testStore, key, "count")
	require.ErrorIs(t, err, store.ErrCounterUnderflow)

	_, err = store.Increment(ctx, testStore, key, "count")
	require.NoError(t, err)
	got, err := store.Decrement(ctx, testStore, key, "count")
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Int("count"))
}

func TestStore_TransactReportsFailedOp(t *testing.T) {
	ctx := context.Background()
	taken := uniqueKey("e2e")
	free := uniqueKey("e2e")
	require.NoError(t, testStore.Add(ctx, row(t, taken, nil)))

	err := testStore.Transact(ctx, []store.Op{
		store.AddOp(row(t, free, nil)),
		store.AddOp(row(t, taken, nil)),
	})
	var txErr *store.TxCanceledError
	require.True(t, errors.As(err, &txErr), "got %v", err)
	assert.Equal(t, 1, txErr.FailedIndex())

	got, err := testStore.Get(ctx, free)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_QueryPagesThroughIndex(t *testing.T) {
	ctx := context.Background()
	partition := "e2ePage/" + uuid.New().String()
	pkAttr, skAttr := store.IndexAttrs(store.IndexA1)

	var puts []store.Row
	for i := range 5 {
		puts = append(puts, row(t, uniqueKey("e2e"), map[string]any{
			pkAttr: partition,
			skAttr: fmt.Sprintf("%03d", i),
		}))
	}
	require.NoError(t, testStore.BatchWrite(ctx, puts, nil))

	// Index reads are eventually consistent.
	var rows []store.Row
	require.Eventually(t, func() bool {
		var err error
		rows, err = store.All(ctx, testStore, store.Query{Index: store.IndexA1, PK: partition, Limit: 2})
		return err == nil && len(rows) == 5
	}, 10*time.Second, 200*time.Millisecond)

	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("%03d", i), r.String(skAttr))
	}
}

// --- Managers ---

func newApp(t *testing.T) (*manager.App, *collabtest.Fakes) {
	t.Helper()
	fakes := collabtest.New()
	return manager.New(cfg, testStore, fakes.Set(), manager.WithLogger(zap.NewNop())), fakes
}

func newUser(t *testing.T, app *manager.App, fakes *collabtest.Fakes) *model.User {
	t.Helper()
	id := uuid.New().String()
	username := "e2e_" + id[:8]
	fakes.Identity.AddUser(id, map[string]string{
		collab.AttrEmail:         username + "@example.com",
		collab.AttrEmailVerified: "true",
	})
	u, err := app.Users.CreateCognitoOnlyUser(context.Background(), id, username, "")
	require.NoError(t, err)
	return u
}

func TestUsers_UsernameIsUnique(t *testing.T) {
	ctx := context.Background()
	app, fakes := newApp(t)
	first := newUser(t, app, fakes)

	second := newUser(t, app, fakes)
	_, err := app.Users.UpdateUsername(ctx, second.UserID, first.Username)
	require.ErrorIs(t, err, manager.ErrUsernameTaken)

	got, err := app.Users.Get(ctx, second.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Username, got.Username)
}

func TestPosts_TextPostCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	app, fakes := newApp(t)
	u := newUser(t, app, fakes)

	postID := uuid.New().String()
	p, err := app.Posts.AddPost(ctx, manager.AddPostInput{
		PostID: postID,
		UserID: u.UserID,
		Type:   model.PostTextOnly,
		Text:   "from e2e",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PostCompleted, p.Status)

	_, err = app.Posts.AddPost(ctx, manager.AddPostInput{PostID: postID, UserID: u.UserID, Type: model.PostTextOnly, Text: "again"})
	require.ErrorIs(t, err, manager.ErrPostAlreadyExists)

	archived, err := app.Posts.Archive(ctx, u.UserID, postID)
	require.NoError(t, err)
	assert.Equal(t, model.PostArchived, archived.Status)
}

// --- Reactor ---

func TestDispatcher_MarkersSurviveRedelivery(t *testing.T) {
	ctx := context.Background()
	d := reactor.NewDispatcher(repo.New(testStore).Processed, reactor.Options{})
	calls := 0
	d.On(schema.KindPost, "count", func(context.Context, *reactor.Event) error {
		calls++
		return nil
	})

	key := schema.PostKey(uuid.New().String())
	change := store.Change{ID: uuid.New().String(), Key: key, New: store.Row(key.Attrs())}
	for range 3 {
		require.NoError(t, d.Dispatch(ctx, change))
	}
	assert.Equal(t, 1, calls)
}
