package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type fakeAdmin struct {
	created []string
	ttl     []string
	deleted []string
	inUse   map[string]bool
	ttlErr  error
}

func (f *fakeAdmin) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	if f.inUse[name] {
		return nil, &types.ResourceInUseException{Message: aws.String("exists")}
	}
	f.created = append(f.created, name)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAdmin) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeAdmin) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.ttl = append(f.ttl, aws.ToString(in.TableName)+":"+aws.ToString(in.TimeToLiveSpecification.AttributeName))
	if f.ttlErr != nil {
		return nil, f.ttlErr
	}
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func (f *fakeAdmin) DeleteTable(_ context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	name := aws.ToString(in.TableName)
	if name == "cookhouse_missing" {
		return nil, &types.ResourceNotFoundException{Message: aws.String("missing")}
	}
	f.deleted = append(f.deleted, name)
	return &dynamodb.DeleteTableOutput{}, nil
}

var testSpecs = []TableSpec{
	{
		Collection: "posts",
		Indexes:    []IndexSpec{{Field: "author"}, {Field: "createdOn", Ordered: true}},
		Stream:     true,
	},
	{Collection: "users", Indexes: []IndexSpec{{Field: "uid"}}},
}

func TestCreateTableInput(t *testing.T) {
	in := DefaultConfig().CreateTableInput(testSpecs[0])

	if aws.ToString(in.TableName) != "cookhouse_posts" {
		t.Errorf("unexpected table %q", aws.ToString(in.TableName))
	}
	if len(in.KeySchema) != 1 || aws.ToString(in.KeySchema[0].AttributeName) != "pk" {
		t.Errorf("unexpected key schema %+v", in.KeySchema)
	}

	var defs []string
	for _, d := range in.AttributeDefinitions {
		defs = append(defs, aws.ToString(d.AttributeName))
	}
	want := []string{"pk", "author", "_feed", "createdOn"}
	if len(defs) != len(want) {
		t.Fatalf("expected definitions %v, got %v", want, defs)
	}
	for i := range want {
		if defs[i] != want[i] {
			t.Errorf("expected definitions %v, got %v", want, defs)
			break
		}
	}

	if len(in.GlobalSecondaryIndexes) != 2 {
		t.Fatalf("expected 2 indexes, got %d", len(in.GlobalSecondaryIndexes))
	}
	feed := in.GlobalSecondaryIndexes[1]
	if aws.ToString(feed.IndexName) != "createdOn-index" {
		t.Errorf("unexpected index %q", aws.ToString(feed.IndexName))
	}
	if aws.ToString(feed.KeySchema[0].AttributeName) != "_feed" || feed.KeySchema[1].KeyType != types.KeyTypeRange {
		t.Errorf("expected feed hash and createdOn range, got %+v", feed.KeySchema)
	}

	if in.StreamSpecification == nil || in.StreamSpecification.StreamViewType != types.StreamViewTypeNewAndOldImages {
		t.Error("expected NEW_AND_OLD_IMAGES stream")
	}
	if DefaultConfig().CreateTableInput(testSpecs[1]).StreamSpecification != nil {
		t.Error("expected no stream on users")
	}
}

func TestCreateTables(t *testing.T) {
	api := &fakeAdmin{inUse: map[string]bool{"cookhouse_users": true}}

	if err := CreateTables(context.Background(), api, DefaultConfig(), testSpecs, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.created) != 1 || api.created[0] != "cookhouse_posts" {
		t.Errorf("expected only posts created, got %v", api.created)
	}
	if len(api.ttl) != 2 || api.ttl[0] != "cookhouse_posts:ttl" {
		t.Errorf("expected ttl enabled on both tables, got %v", api.ttl)
	}
}

func TestCreateTables_TTLErrors(t *testing.T) {
	api := &fakeAdmin{ttlErr: &smithy.GenericAPIError{Code: "ValidationException", Message: "TimeToLive is already enabled"}}
	if err := CreateTables(context.Background(), api, DefaultConfig(), testSpecs, time.Minute); err != nil {
		t.Errorf("expected already-enabled TTL to be ignored, got %v", err)
	}

	api = &fakeAdmin{ttlErr: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
	if err := CreateTables(context.Background(), api, DefaultConfig(), testSpecs, time.Minute); err == nil {
		t.Error("expected other TTL errors to fail")
	}
}

func TestDeleteTables(t *testing.T) {
	api := &fakeAdmin{}
	specs := append([]TableSpec{{Collection: "missing"}}, testSpecs...)

	if err := DeleteTables(context.Background(), api, DefaultConfig(), specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.deleted) != 2 {
		t.Errorf("expected 2 deletions, got %v", api.deleted)
	}
}

func TestTTLAlreadyEnabled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"already enabled", &smithy.GenericAPIError{Code: "ValidationException", Message: "TimeToLive is already enabled"}, true},
		{"wrapped", fmt.Errorf("enable: %w", &smithy.GenericAPIError{Code: "ValidationException", Message: "TimeToLive is already enabled"}), true},
		{"other validation", &smithy.GenericAPIError{Code: "ValidationException", Message: "One or more parameter values were invalid"}, false},
		{"other code", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "TimeToLive is already enabled"}, false},
		{"plain error", errors.New("TimeToLive is already enabled"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ttlAlreadyEnabled(tt.err); got != tt.want {
				t.Errorf("ttlAlreadyEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
