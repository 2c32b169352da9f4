package photo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Static errors for the DynamoDB repository.
var (
	// ErrTableRequired is returned when no table name is provided.
	ErrTableRequired = errors.New("photo: table name is required")
	// ErrIndexRequired is returned when no uploader index name is provided.
	ErrIndexRequired = errors.New("photo: uploader index name is required")
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepository.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	dynamodb.QueryAPIClient
}

// Compile-time check that DynamoRepository implements Repository.
var _ Repository = (*DynamoRepository)(nil)

// DynamoRepository stores records in a DynamoDB table keyed by
// photoMetadata, with a global secondary index on uploadedBy.
type DynamoRepository struct {
	client DynamoAPI
	table  string
	index  string
}

// NewDynamoRepository creates a repository over the given table and index.
func NewDynamoRepository(client DynamoAPI, table, index string) (*DynamoRepository, error) {
	if table == "" {
		return nil, ErrTableRequired
	}
	if index == "" {
		return nil, ErrIndexRequired
	}
	return &DynamoRepository{client: client, table: table, index: index}, nil
}

// Create puts the record unless one already exists under the same key.
func (r *DynamoRepository) Create(ctx context.Context, record *Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(photoMetadata)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Get reads a record with a strongly consistent read.
func (r *DynamoRepository) Get(ctx context.Context, key string) (*Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrRecordNotFound
	}

	var record Record
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

// ListByUploader queries the uploader index, following every page.
func (r *DynamoRepository) ListByUploader(ctx context.Context, uploadedBy string) ([]*Record, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(r.index),
		KeyConditionExpression: aws.String("uploadedBy = :uploadedBy"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uploadedBy": &types.AttributeValueMemberS{Value: uploadedBy},
		},
	})

	records := make([]*Record, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query uploader index: %w", err)
		}

		var batch []*Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		records = append(records, batch...)
	}
	return records, nil
}

// Complete performs the pending -> processed/failed transition as a single
// conditional update, so a duplicate delivery cannot apply it twice.
func (r *DynamoRepository) Complete(ctx context.Context, key string, outcome Outcome) error {
	if !CanTransition(StatusPending, outcome.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, StatusPending, outcome.Status)
	}

	values := map[string]types.AttributeValue{
		":pending":   &types.AttributeValueMemberS{Value: string(StatusPending)},
		":status":    &types.AttributeValueMemberS{Value: string(outcome.Status)},
		":updatedAt": &types.AttributeValueMemberS{Value: outcome.At.UTC().Format(time.RFC3339)},
	}
	update := "SET #status = :status, updatedAt = :updatedAt"

	switch outcome.Status {
	case StatusProcessed:
		update += ", fileSize = :fileSize, dimensions = :dimensions, thumbnailDimensions = :thumbnailDimensions"
		values[":fileSize"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", outcome.FileSize)}
		values[":dimensions"] = &types.AttributeValueMemberS{Value: outcome.Dimensions}
		values[":thumbnailDimensions"] = &types.AttributeValueMemberS{Value: outcome.ThumbnailDimensions}
	case StatusFailed:
		update += ", failureReason = :failureReason"
		values[":failureReason"] = &types.AttributeValueMemberS{Value: outcome.FailureReason}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       keyOf(key),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(photoMetadata) AND #status = :pending"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	if err == nil {
		return nil
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("update record status: %w", err)
	}

	// The condition covers two cases; tell them apart for the caller.
	_, getErr := r.Get(ctx, key)
	switch {
	case errors.Is(getErr, ErrRecordNotFound):
		return ErrRecordNotFound
	case getErr != nil:
		return fmt.Errorf("read record after failed condition: %w", getErr)
	}
	return fmt.Errorf("%w: record %s is no longer pending", ErrInvalidTransition, key)
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"photoMetadata": &types.AttributeValueMemberS{Value: key},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
