package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacentio/cookhouse/internal/shard"
)

// API is the subset of the DynamoDB client the Store uses.
// *dynamodb.Client satisfies it.
type API interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store provides path-addressed document operations on DynamoDB.
// Each collection is a table; each record is one item keyed by "pk";
// paths below a record are document paths inside the item.
type Store struct {
	client   API
	config   Config
	registry *Registry
	tracer   trace.Tracer
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		tracer: otel.Tracer("github.com/jacentio/cookhouse/store"),
	}
}

// NewWithRegistry creates a new Store instance with a mirror registry.
func NewWithRegistry(client API, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// SetRegistry sets the mirror registry.
func (s *Store) SetRegistry(registry *Registry) {
	s.registry = registry
}

// Registry returns the mirror registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) table(collection string) *string {
	return aws.String(s.config.TableName(collection))
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key},
	}
}

// Get reads the value at path. A missing or deleted path yields a snapshot
// whose Exists reports false, not an error.
func (s *Store) Get(ctx context.Context, path string) (snap *Snapshot, err error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if p.IsCollection() {
		return s.scan(ctx, p.Collection)
	}

	ctx, span := s.startSpan(ctx, "Get", p.Collection)
	defer func() { endSpan(span, err) }()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      s.table(p.Collection),
		Key:            recordKey(p.Key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return NewSnapshot(p.Name(), nil), nil
	}

	record := &types.AttributeValueMemberM{Value: stripManaged(result.Item)}
	return NewSnapshot(p.Name(), lookup(record, p.Fields)), nil
}

// scan reads every live record of a collection.
func (s *Store) scan(ctx context.Context, collection string) (snap *Snapshot, err error) {
	ctx, span := s.startSpan(ctx, "Scan", collection)
	defer func() { endSpan(span, err) }()

	records := make(map[string]types.AttributeValue)
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 s.table(collection),
		FilterExpression:          aws.String(TTLFilterExpr()),
		ExpressionAttributeNames:  TTLFilterNames(),
		ExpressionAttributeValues: TTLFilterValues(),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		collect(records, page.Items)
	}

	return NewSnapshot(collection, &types.AttributeValueMemberM{Value: records}), nil
}

// Push stores value under a generated key below path and returns the key.
func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}

	key := NewKey()
	if p.IsCollection() {
		if err := s.put(ctx, Path{Collection: p.Collection, Key: key}, value, true); err != nil {
			return "", err
		}
		return key, nil
	}
	if err := s.Update(ctx, map[string]any{JoinPath(p.String(), key): value}); err != nil {
		return "", err
	}
	return key, nil
}

// Set overwrites the value at path. A nil value removes it.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.IsCollection() {
		return fmt.Errorf("%w: cannot overwrite collection %q", ErrInvalidPath, p.Collection)
	}
	if value == nil {
		return s.Remove(ctx, path)
	}
	if p.IsRecord() {
		return s.put(ctx, p, value, false)
	}
	return s.Update(ctx, map[string]any{path: value})
}

// Create writes a new record at path. A live record already stored there
// fails with ErrAlreadyExists; a soft-deleted one is replaced.
func (s *Store) Create(ctx context.Context, path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if !p.IsRecord() {
		return fmt.Errorf("%w: create needs a record path, got %q", ErrInvalidPath, path)
	}
	return s.put(ctx, p, value, true)
}

// put writes a whole record. With create set, a live record fails with ErrAlreadyExists.
func (s *Store) put(ctx context.Context, p Path, value any, create bool) (err error) {
	item, err := s.recordItem(p, value)
	if err != nil {
		return err
	}

	ctx, span := s.startSpan(ctx, "PutItem", p.Collection)
	defer func() { endSpan(span, err) }()

	input := &dynamodb.PutItemInput{
		TableName: s.table(p.Collection),
		Item:      item,
	}
	if create {
		input.ConditionExpression = aws.String("attribute_not_exists(#pk) OR attribute_exists(#ttl)")
		input.ExpressionAttributeNames = liveConditionNames()
	}

	_, err = s.client.PutItem(ctx, input)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrAlreadyExists
	}
	return err
}

// recordItem marshals a record value and stamps the managed attributes.
func (s *Store) recordItem(p Path, value any) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p, err)
	}
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("%w: record %s must be a map or struct", ErrInvalidValue, p)
	}

	item := stripManaged(m.Value)
	item[attrKey] = &types.AttributeValueMemberS{Value: p.Key}
	item[attrCollection] = &types.AttributeValueMemberS{Value: p.Collection}
	item[attrFeed] = &types.AttributeValueMemberS{Value: shard.FeedPK(p.Collection, p.Key, s.config.NumShards)}
	return item, nil
}

// recordWrite is the planned write against one record of a multi-path update.
type recordWrite struct {
	path   Path
	put    map[string]types.AttributeValue
	delete bool
	expr   *updateExpr
}

// Update applies a multi-path update. Nil values remove their path.
// Writes touching one record become a single UpdateItem/PutItem; writes
// spanning several records are submitted as one transaction.
func (s *Store) Update(ctx context.Context, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	writes, err := s.planUpdate(updates)
	if err != nil {
		return err
	}
	if len(writes) > s.config.MaxTransactItems {
		return fmt.Errorf("%w: %d records", ErrTooManyPaths, len(writes))
	}
	if len(writes) == 1 {
		return s.applyWrite(ctx, writes[0])
	}
	return s.transact(ctx, writes)
}

// planUpdate groups paths by record and builds one write per record.
func (s *Store) planUpdate(updates map[string]any) ([]*recordWrite, error) {
	raw := make([]string, 0, len(updates))
	for k := range updates {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	var writes []*recordWrite
	byRecord := make(map[string]*recordWrite)
	seen := make(map[string][]Path)

	for _, r := range raw {
		p, err := ParsePath(r)
		if err != nil {
			return nil, err
		}
		if p.IsCollection() {
			return nil, fmt.Errorf("%w: cannot overwrite collection %q", ErrInvalidPath, p.Collection)
		}

		id := p.recordID()
		for _, other := range seen[id] {
			if other.contains(p) || p.contains(other) {
				return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingPaths, other, p)
			}
		}
		seen[id] = append(seen[id], p)

		w, ok := byRecord[id]
		if !ok {
			w = &recordWrite{path: Path{Collection: p.Collection, Key: p.Key}}
			byRecord[id] = w
			writes = append(writes, w)
		}

		value := updates[r]
		if p.IsRecord() {
			if value == nil {
				w.delete = true
				continue
			}
			item, err := s.recordItem(p, value)
			if err != nil {
				return nil, err
			}
			w.put = item
			continue
		}

		if w.expr == nil {
			w.expr = newUpdateExpr()
		}
		if value == nil {
			w.expr.remove(p.Fields)
			continue
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", p, err)
		}
		if _, isNull := av.(*types.AttributeValueMemberNULL); isNull {
			w.expr.remove(p.Fields)
			continue
		}
		w.expr.set(p.Fields, av)
	}

	return writes, nil
}

// applyWrite executes a single-record write outside a transaction.
func (s *Store) applyWrite(ctx context.Context, w *recordWrite) (err error) {
	switch {
	case w.put != nil:
		ctx, span := s.startSpan(ctx, "PutItem", w.path.Collection)
		defer func() { endSpan(span, err) }()
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: s.table(w.path.Collection),
			Item:      w.put,
		})
		return err
	case w.delete:
		return s.softDelete(ctx, w.path)
	}

	ctx, span := s.startSpan(ctx, "UpdateItem", w.path.Collection)
	defer func() { endSpan(span, err) }()

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 s.table(w.path.Collection),
		Key:                       recordKey(w.path.Key),
		UpdateExpression:          aws.String(w.expr.String()),
		ConditionExpression:       aws.String(LiveRecordCondition()),
		ExpressionAttributeNames:  w.expr.exprNames(liveConditionNames()),
		ExpressionAttributeValues: w.expr.exprValues(),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

// transact executes writes against several records atomically.
func (s *Store) transact(ctx context.Context, writes []*recordWrite) (err error) {
	ctx, span := s.startSpan(ctx, "TransactWriteItems", writes[0].path.Collection)
	span.SetAttributes(attribute.Int("cookhouse.records", len(writes)))
	defer func() { endSpan(span, err) }()

	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		table := s.table(w.path.Collection)
		switch {
		case w.put != nil:
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{TableName: table, Item: w.put},
			})
		case w.delete:
			items = append(items, types.TransactWriteItem{
				Update: &types.Update{
					TableName:                table,
					Key:                      recordKey(w.path.Key),
					UpdateExpression:         aws.String("SET #ttl = if_not_exists(#ttl, :now)"),
					ExpressionAttributeNames: map[string]string{"#ttl": attrTTL},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
					},
				},
			})
		default:
			items = append(items, types.TransactWriteItem{
				Update: &types.Update{
					TableName:                 table,
					Key:                       recordKey(w.path.Key),
					UpdateExpression:          aws.String(w.expr.String()),
					ConditionExpression:       aws.String(LiveRecordCondition()),
					ExpressionAttributeNames:  w.expr.exprNames(liveConditionNames()),
					ExpressionAttributeValues: w.expr.exprValues(),
				},
			})
		}
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err)
}

// Remove deletes the value at path. Records are soft-deleted through their
// TTL, which drops everything nested inside them at once. Removing a missing
// path is not an error.
func (s *Store) Remove(ctx context.Context, path string) (err error) {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.IsCollection() {
		return fmt.Errorf("%w: cannot remove collection %q", ErrInvalidPath, p.Collection)
	}
	if p.IsRecord() {
		return s.softDelete(ctx, p)
	}

	ctx, span := s.startSpan(ctx, "UpdateItem", p.Collection)
	defer func() { endSpan(span, err) }()

	expr := newUpdateExpr()
	expr.remove(p.Fields)
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                s.table(p.Collection),
		Key:                      recordKey(p.Key),
		UpdateExpression:         aws.String(expr.String()),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: expr.exprNames(map[string]string{"#pk": attrKey}),
	})

	// Ignore condition failure - record is gone, so is the path
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// softDelete marks a record for deletion by setting its TTL to now.
func (s *Store) softDelete(ctx context.Context, p Path) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateItem", p.Collection)
	defer func() { endSpan(span, err) }()

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           s.table(p.Collection),
		Key:                 recordKey(p.Key),
		UpdateExpression:    aws.String("SET #ttl = :now"),
		ConditionExpression: aws.String(LiveRecordCondition()),
		ExpressionAttributeNames: map[string]string{
			"#pk":  attrKey,
			"#ttl": attrTTL,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(time.Now().Unix(), 10),
			},
		},
	})

	// Ignore condition failure - missing or already deleted
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// QueryEqual returns the live records of collection whose field equals value,
// keyed by record key. The collection's table needs a GSI named IndexName(field).
func (s *Store) QueryEqual(ctx context.Context, collection, field, value string) (snap *Snapshot, err error) {
	ctx, span := s.startSpan(ctx, "Query", collection)
	span.SetAttributes(attribute.String("cookhouse.index", IndexName(field)))
	defer func() { endSpan(span, err) }()

	records := make(map[string]types.AttributeValue)
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              s.table(collection),
		IndexName:              aws.String(IndexName(field)),
		KeyConditionExpression: aws.String("#field = :value"),
		FilterExpression:       aws.String(TTLFilterExpr()),
		ExpressionAttributeNames: mergeExprNames(
			map[string]string{"#field": field},
			TTLFilterNames(),
		),
		ExpressionAttributeValues: mergeExprValues(
			map[string]types.AttributeValue{":value": &types.AttributeValueMemberS{Value: value}},
			TTLFilterValues(),
		),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		collect(records, page.Items)
	}

	return NewSnapshot(collection, &types.AttributeValueMemberM{Value: records}), nil
}

// feedHit is one record returned by a feed shard query.
type feedHit struct {
	key   string
	order string
	item  map[string]types.AttributeValue
}

// QueryLast returns the limit live records of collection with the greatest
// orderBy values, ordered ascending. The collection's table needs a GSI named
// IndexName(orderBy) partitioned on the feed shard attribute.
func (s *Store) QueryLast(ctx context.Context, collection, orderBy string, limit int) (*Snapshot, error) {
	if limit <= 0 {
		return NewOrderedSnapshot(collection, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}, []string{}), nil
	}

	feedPKs := shard.FeedPKs(collection, s.config.NumShards)

	var hits []feedHit
	if len(feedPKs) == 1 {
		// Fast path for single shard (default)
		h, err := s.queryFeedShard(ctx, collection, orderBy, feedPKs[0], limit)
		if err != nil {
			return nil, err
		}
		hits = h
	} else {
		var mu sync.Mutex
		var wg sync.WaitGroup
		errs := make(chan error, len(feedPKs))

		for _, feedPK := range feedPKs {
			wg.Add(1)
			go func(feedPK string) {
				defer wg.Done()
				h, err := s.queryFeedShard(ctx, collection, orderBy, feedPK, limit)
				if err != nil {
					errs <- fmt.Errorf("shard %s: %w", feedPK, err)
					return
				}
				mu.Lock()
				hits = append(hits, h...)
				mu.Unlock()
			}(feedPK)
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].order != hits[j].order {
			return hits[i].order < hits[j].order
		}
		return hits[i].key < hits[j].key
	})
	if len(hits) > limit {
		hits = hits[len(hits)-limit:]
	}

	records := make(map[string]types.AttributeValue, len(hits))
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		records[h.key] = &types.AttributeValueMemberM{Value: stripManaged(h.item)}
		order = append(order, h.key)
	}
	return NewOrderedSnapshot(collection, &types.AttributeValueMemberM{Value: records}, order), nil
}

// queryFeedShard reads up to limit live records of one feed shard, newest first.
func (s *Store) queryFeedShard(ctx context.Context, collection, orderBy, feedPK string, limit int) (hits []feedHit, err error) {
	ctx, span := s.startSpan(ctx, "Query", collection)
	span.SetAttributes(
		attribute.String("cookhouse.index", IndexName(orderBy)),
		attribute.String("cookhouse.feed", feedPK),
	)
	defer func() { endSpan(span, err) }()

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              s.table(collection),
		IndexName:              aws.String(IndexName(orderBy)),
		KeyConditionExpression: aws.String("#feed = :feed"),
		FilterExpression:       aws.String(TTLFilterExpr()),
		ExpressionAttributeNames: mergeExprNames(
			map[string]string{"#feed": attrFeed},
			TTLFilterNames(),
		),
		ExpressionAttributeValues: mergeExprValues(
			map[string]types.AttributeValue{":feed": &types.AttributeValueMemberS{Value: feedPK}},
			TTLFilterValues(),
		),
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})

	for paginator.HasMorePages() && len(hits) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			if len(hits) == limit {
				break
			}
			key := stringAttr(raw, attrKey)
			if key == "" {
				continue
			}
			hits = append(hits, feedHit{key: key, order: stringAttr(raw, orderBy), item: raw})
		}
	}
	return hits, nil
}

// mapTransactionError maps DynamoDB transaction errors for multi-record updates.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				// Only nested writes carry a condition: their record is missing or deleted
				return ErrNotFound
			}
		}
	}

	return err
}

func liveConditionNames() map[string]string {
	return map[string]string{"#pk": attrKey, "#ttl": attrTTL}
}

// collect adds raw items to records, keyed by their record key.
func collect(records map[string]types.AttributeValue, items []map[string]types.AttributeValue) {
	for _, raw := range items {
		key := stringAttr(raw, attrKey)
		if key == "" || IsDeleted(raw) {
			continue
		}
		records[key] = &types.AttributeValueMemberM{Value: stripManaged(raw)}
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (s *Store) startSpan(ctx context.Context, op, collection string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dynamodb"),
			attribute.String("db.operation", op),
			attribute.String("cookhouse.collection", collection),
			attribute.String("aws.dynamodb.table_names", s.config.TableName(collection)),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
