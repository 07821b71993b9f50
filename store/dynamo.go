package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
)

const (
	batchGetLimit   = 100
	batchWriteLimit = 25
)

// DynamoDBAPI is the subset of the DynamoDB client used by Dynamo.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Dynamo is the DynamoDB-backed KeyedStore. Its change stream is the
// table's DynamoDB stream, consumed by a Lambda.
type Dynamo struct {
	client DynamoDBAPI
	config Config
}

// NewDynamo creates a store over one table.
func NewDynamo(client DynamoDBAPI, config Config) *Dynamo {
	config.validate()
	return &Dynamo{
		client: client,
		config: config,
	}
}

// TableName returns the table the store writes to.
func (d *Dynamo) TableName() string {
	return d.config.TableName
}

func (d *Dynamo) Get(ctx context.Context, key Key, opts ...ReadOption) (Row, error) {
	o := applyReadOptions(opts)
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.config.TableName),
		Key:            key.Attrs(),
		ConsistentRead: aws.Bool(o.consistent || d.config.ConsistentReads),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return Row(out.Item), nil
}

func (d *Dynamo) Add(ctx context.Context, row Row) error {
	err := d.Put(ctx, row, RowNotExists())
	if errors.Is(err, ErrPreconditionFailed) {
		return ErrAlreadyExists
	}
	return err
}

func (d *Dynamo) Put(ctx context.Context, row Row, cond Cond) error {
	in := &dynamodb.PutItemInput{
		TableName: aws.String(d.config.TableName),
		Item:      row,
	}
	if cond != nil {
		expr, err := buildExpression(cond, nil)
		if err != nil {
			return err
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
		in.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	_, err := d.client.PutItem(ctx, in)
	return mapConditionError(err)
}

func (d *Dynamo) Update(ctx context.Context, key Key, upd *Update, cond Cond) (Row, error) {
	if upd.Empty() {
		return nil, ErrEmptyUpdate
	}
	expr, err := buildExpression(And(RowExists(), cond), upd)
	if err != nil {
		return nil, err
	}
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(d.config.TableName),
		Key:                                 key.Attrs(),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return nil, mapConditionError(err)
	}
	return Row(out.Attributes), nil
}

func (d *Dynamo) Delete(ctx context.Context, key Key, cond Cond) (Row, error) {
	in := &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.config.TableName),
		Key:          key.Attrs(),
		ReturnValues: types.ReturnValueAllOld,
	}
	if cond != nil {
		expr, err := buildExpression(cond, nil)
		if err != nil {
			return nil, err
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
		in.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	out, err := d.client.DeleteItem(ctx, in)
	if err != nil {
		return nil, mapConditionError(err)
	}
	if len(out.Attributes) == 0 {
		return nil, nil
	}
	return Row(out.Attributes), nil
}

func (d *Dynamo) Transact(ctx context.Context, ops []Op) error {
	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		item, err := d.transactItem(op)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err)
}

func (d *Dynamo) transactItem(op Op) (types.TransactWriteItem, error) {
	table := aws.String(d.config.TableName)
	var upd *Update
	if op.Kind == OpUpdate {
		upd = op.Update
	}
	var (
		expr expression.Expression
		err  error
	)
	if op.Cond != nil || upd != nil {
		if expr, err = buildExpression(op.Cond, upd); err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("op %s %s: %w", op.Kind, op.Key, err)
		}
	}
	switch op.Kind {
	case OpPut:
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                 table,
			Item:                      op.Row,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	case OpUpdate:
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 table,
			Key:                       op.Key.Attrs(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	case OpDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 table,
			Key:                       op.Key.Attrs(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	case OpCheck:
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 table,
			Key:                       op.Key.Attrs(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	}
	return types.TransactWriteItem{}, fmt.Errorf("store: unknown op kind %d", op.Kind)
}

func (d *Dynamo) BatchGet(ctx context.Context, keys []Key) ([]Row, error) {
	var rows []Row
	for _, chunk := range lo.Chunk(keys, batchGetLimit) {
		request := map[string]types.KeysAndAttributes{
			d.config.TableName: {
				Keys: lo.Map(chunk, func(k Key, _ int) map[string]types.AttributeValue { return k.Attrs() }),
			},
		}
		err := d.retry(ctx, func() error {
			out, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return backoff.Permanent(err)
			}
			for _, item := range out.Responses[d.config.TableName] {
				rows = append(rows, Row(item))
			}
			if len(out.UnprocessedKeys) == 0 {
				return nil
			}
			request = out.UnprocessedKeys
			return fmt.Errorf("store: %d unprocessed keys", len(out.UnprocessedKeys[d.config.TableName].Keys))
		})
		if err != nil {
			return nil, fmt.Errorf("batch get: %w", err)
		}
	}
	return rows, nil
}

func (d *Dynamo) BatchWrite(ctx context.Context, puts []Row, deletes []Key) error {
	requests := make([]types.WriteRequest, 0, len(puts)+len(deletes))
	for _, r := range puts {
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: r}})
	}
	for _, k := range deletes {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k.Attrs()}})
	}
	for _, chunk := range lo.Chunk(requests, batchWriteLimit) {
		pending := map[string][]types.WriteRequest{d.config.TableName: chunk}
		err := d.retry(ctx, func() error {
			out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return backoff.Permanent(err)
			}
			if len(out.UnprocessedItems) == 0 {
				return nil
			}
			pending = out.UnprocessedItems
			return fmt.Errorf("store: %d unprocessed writes", len(out.UnprocessedItems[d.config.TableName]))
		})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
	}
	return nil
}

// retry runs fn with exponential backoff until it succeeds, returns a
// permanent error, or the configured time budget runs out.
func (d *Dynamo) retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = d.config.BatchRetryMaxElapsed
	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}

func (d *Dynamo) Query(ctx context.Context, q Query) (Page, error) {
	pkAttr, skAttr := IndexAttrs(q.Index)
	if pkAttr == "" {
		return Page{}, fmt.Errorf("store: unknown index %q", q.Index)
	}
	keyCond := expression.Key(pkAttr).Equal(expression.Value(q.PK))
	if q.SK != nil {
		keyCond = keyCond.And(buildKeyCondition(skAttr, q.SK))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if q.Filter != nil {
		filter, err := buildCondition(q.Filter)
		if err != nil {
			return Page{}, err
		}
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return Page{}, fmt.Errorf("build query: %w", err)
	}
	start, err := decodeCursor(q.Cursor)
	if err != nil {
		return Page{}, err
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(d.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.Descending),
		ExclusiveStartKey:         start,
	}
	if q.Index != "" {
		in.IndexName = aws.String(q.Index)
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}

	out, err := d.client.Query(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("query %s %s: %w", q.Index, q.PK, err)
	}
	page := Page{Rows: make([]Row, 0, len(out.Items))}
	for _, item := range out.Items {
		page.Rows = append(page.Rows, Row(item))
	}
	if page.Cursor, err = encodeCursor(out.LastEvaluatedKey); err != nil {
		return Page{}, err
	}
	return page, nil
}

func (d *Dynamo) Scan(ctx context.Context, in ScanInput) ([]Row, error) {
	scanInput := &dynamodb.ScanInput{
		TableName: aws.String(d.config.TableName),
	}
	if in.Index != "" {
		scanInput.IndexName = aws.String(in.Index)
	}
	if in.Filter != nil {
		filter, err := buildCondition(in.Filter)
		if err != nil {
			return nil, err
		}
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("build scan: %w", err)
		}
		scanInput.FilterExpression = expr.Filter()
		scanInput.ExpressionAttributeNames = expr.Names()
		scanInput.ExpressionAttributeValues = expr.Values()
	}

	var rows []Row
	paginator := dynamodb.NewScanPaginator(d.client, scanInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for _, item := range page.Items {
			rows = append(rows, Row(item))
		}
	}
	return rows, nil
}

// buildExpression assembles condition and update clauses. Either may be nil.
func buildExpression(cond Cond, upd *Update) (expression.Expression, error) {
	builder := expression.NewBuilder()
	if cond != nil {
		c, err := buildCondition(cond)
		if err != nil {
			return expression.Expression{}, err
		}
		builder = builder.WithCondition(c)
	}
	if upd != nil {
		builder = builder.WithUpdate(buildUpdate(upd))
	}
	expr, err := builder.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build expression: %w", err)
	}
	return expr, nil
}

func buildCondition(c Cond) (expression.ConditionBuilder, error) {
	switch tc := c.(type) {
	case existsCond:
		if tc.exists {
			return expression.AttributeExists(expression.Name(tc.attr)), nil
		}
		return expression.AttributeNotExists(expression.Name(tc.attr)), nil
	case compareCond:
		name := expression.Name(tc.attr)
		if tc.op == opBeginsWith {
			return expression.BeginsWith(name, tc.value.(string)), nil
		}
		value := expression.Value(nativeValue(tc.value))
		switch tc.op {
		case opEq:
			return name.Equal(value), nil
		case opNe:
			return name.NotEqual(value), nil
		case opLt:
			return name.LessThan(value), nil
		case opLe:
			return name.LessThanEqual(value), nil
		case opGt:
			return name.GreaterThan(value), nil
		case opGe:
			return name.GreaterThanEqual(value), nil
		}
	case logicalCond:
		subs := make([]expression.ConditionBuilder, len(tc.conds))
		for i, sub := range tc.conds {
			b, err := buildCondition(sub)
			if err != nil {
				return expression.ConditionBuilder{}, err
			}
			subs[i] = b
		}
		if tc.and {
			return expression.And(subs[0], subs[1], subs[2:]...), nil
		}
		return expression.Or(subs[0], subs[1], subs[2:]...), nil
	case notCond:
		b, err := buildCondition(tc.cond)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Not(b), nil
	}
	return expression.ConditionBuilder{}, fmt.Errorf("store: unsupported condition %T", c)
}

func buildUpdate(upd *Update) expression.UpdateBuilder {
	var ub expression.UpdateBuilder
	for _, mu := range upd.muts {
		name := expression.Name(mu.attr)
		switch mu.kind {
		case mutSet:
			ub = ub.Set(name, expression.Value(nativeValue(mu.value)))
		case mutSetIfNotExists:
			ub = ub.Set(name, expression.IfNotExists(name, expression.Value(nativeValue(mu.value))))
		case mutRemove:
			ub = ub.Remove(name)
		case mutAdd:
			ub = ub.Add(name, expression.Value(nativeValue(mu.value)))
		}
	}
	return ub
}

func buildKeyCondition(skAttr string, kc *KeyCond) expression.KeyConditionBuilder {
	key := expression.Key(skAttr)
	low := expression.Value(nativeValue(kc.lo))
	switch kc.op {
	case keyLt:
		return key.LessThan(low)
	case keyLe:
		return key.LessThanEqual(low)
	case keyGt:
		return key.GreaterThan(low)
	case keyGe:
		return key.GreaterThanEqual(low)
	case keyBetween:
		return key.Between(low, expression.Value(nativeValue(kc.hi)))
	case keyBeginsWith:
		return key.BeginsWith(kc.lo.(string))
	}
	return key.Equal(low)
}

// nativeValue turns values the expression builder cannot marshal as
// intended into plain Go values.
func nativeValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return FormatTime(tv)
	case *time.Time:
		if tv == nil {
			return nil
		}
		return FormatTime(*tv)
	case *types.AttributeValueMemberS:
		return tv.Value
	case *types.AttributeValueMemberN:
		f, _ := strconv.ParseFloat(tv.Value, 64)
		return f
	case *types.AttributeValueMemberBOOL:
		return tv.Value
	}
	return v
}

// mapConditionError maps a failed single-row predicate. DynamoDB returns the
// old image on failure, so an empty item means the row was missing.
func mapConditionError(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return ErrNotFound
		}
		return ErrPreconditionFailed
	}
	return err
}

// mapTransactionError converts a cancelled transaction into a
// TxCanceledError with one reason per op.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		reasons := make([]string, len(txErr.CancellationReasons))
		for i, reason := range txErr.CancellationReasons {
			reasons[i] = ReasonNone
			if reason.Code != nil {
				reasons[i] = *reason.Code
			}
		}
		return &TxCanceledError{Reasons: reasons}
	}
	return err
}
