package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentBackup is returned when two writers try to commit the same
// backup version.
var ErrConcurrentBackup = errors.New("concurrent backup detected")

// ErrNoBackup is returned when no backup has been committed yet.
var ErrNoBackup = errors.New("no committed backup")

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore tracks the latest completed backup in DynamoDB. Backup
// artifacts are uploaded to S3 under a versioned prefix first, then the
// version is committed here with a conditional write. Readers that follow
// the committed pointer never observe a half-uploaded backup, and two
// concurrent writers cannot both claim the same version.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name binvecdb-backups \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore creates a new DynamoDB commit store.
// The baseURI should be in "s3://bucket/prefix" format, used as partition key.
func NewCommitStore(client DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Latest returns the most recently committed backup version and its S3
// prefix. Returns ErrNoBackup if nothing has been committed.
func (s *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", ErrNoBackup
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	prefixAttr, ok := item["backup_prefix"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid backup_prefix attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}

	return version, prefixAttr.Value, nil
}

// Commit atomically records a new backup version pointing at backupPrefix.
// The write is conditional on the version not existing yet, so a concurrent
// writer racing for the same version gets ErrConcurrentBackup.
func (s *CommitStore) Commit(ctx context.Context, backupPrefix string) (uint64, error) {
	current, _, err := s.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoBackup) {
		return 0, err
	}

	next := current + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"backup_prefix": &types.AttributeValueMemberS{Value: backupPrefix},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentBackup
		}
		return 0, fmt.Errorf("failed to commit backup version: %w", err)
	}

	return next, nil
}
