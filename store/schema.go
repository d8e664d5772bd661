package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// IndexSpec describes a GSI on a collection.
type IndexSpec struct {
	// Field is the queried attribute.
	Field string

	// Ordered indexes serve QueryLast: the hash key is the managed feed
	// shard attribute and Field is the range key. Plain indexes serve
	// QueryEqual with Field as the hash key.
	Ordered bool
}

// TableSpec describes the table backing a collection.
type TableSpec struct {
	Collection string
	Indexes    []IndexSpec

	// Stream enables a NEW_AND_OLD_IMAGES stream, needed for mirror cleanup.
	Stream bool
}

// AdminAPI is the subset of the DynamoDB client used to manage tables.
type AdminAPI interface {
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// CreateTableInput builds the create request for spec.
func (c Config) CreateTableInput(spec TableSpec) *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(c.TableName(spec.Collection)),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	seen := map[string]bool{}
	define := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS,
		})
	}
	define(attrKey)

	for _, idx := range spec.Indexes {
		gsi := types.GlobalSecondaryIndex{
			IndexName:  aws.String(IndexName(idx.Field)),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
		if idx.Ordered {
			gsi.KeySchema = []types.KeySchemaElement{
				{AttributeName: aws.String(attrFeed), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(idx.Field), KeyType: types.KeyTypeRange},
			}
			define(attrFeed)
		} else {
			gsi.KeySchema = []types.KeySchemaElement{
				{AttributeName: aws.String(idx.Field), KeyType: types.KeyTypeHash},
			}
		}
		define(idx.Field)
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, gsi)
	}

	if spec.Stream {
		in.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		}
	}
	return in
}

// CreateTables creates the tables for specs, waits for them to become active
// and enables TTL on the managed ttl attribute. Existing tables are left as
// they are.
func CreateTables(ctx context.Context, client AdminAPI, config Config, specs []TableSpec, wait time.Duration) error {
	config.validate()

	for _, spec := range specs {
		_, err := client.CreateTable(ctx, config.CreateTableInput(spec))
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", config.TableName(spec.Collection), err)
		}
	}

	for _, spec := range specs {
		table := config.TableName(spec.Collection)
		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(table),
		}, wait); err != nil {
			return fmt.Errorf("wait for table %s: %w", table, err)
		}

		_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(table),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String(attrTTL),
				Enabled:       aws.Bool(true),
			},
		})
		if err != nil && !ttlAlreadyEnabled(err) {
			return fmt.Errorf("enable ttl on %s: %w", table, err)
		}
	}
	return nil
}

// ttlAlreadyEnabled reports the validation error DynamoDB returns when TTL
// is enabled twice.
func ttlAlreadyEnabled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationException" &&
			strings.Contains(apiErr.ErrorMessage(), "already enabled")
	}
	return false
}

// DeleteTables deletes the tables for specs. Missing tables are skipped.
func DeleteTables(ctx context.Context, client AdminAPI, config Config, specs []TableSpec) error {
	config.validate()

	var errs []error
	for _, spec := range specs {
		_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(config.TableName(spec.Collection)),
		})
		var missing *types.ResourceNotFoundException
		if err != nil && !errors.As(err, &missing) {
			errs = append(errs, fmt.Errorf("delete table %s: %w", config.TableName(spec.Collection), err))
		}
	}
	return errors.Join(errs...)
}
