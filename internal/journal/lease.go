package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type itemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoLocker grants leases through conditional writes to a table keyed
// by the string attribute LockID. Expired leases can be taken over.
type DynamoLocker struct {
	client itemAPI
	table  string
	now    func() time.Time
}

func NewDynamoLocker(client itemAPI, table string) *DynamoLocker {
	return &DynamoLocker{client: client, table: table, now: time.Now}
}

func (l *DynamoLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	leaseID := uuid.NewString()
	now := l.now().UTC()

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: key},
			"LeaseID": &dbtypes.AttributeValueMemberS{Value: leaseID},
			"Expires": &dbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)},
			"Created": &dbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID) OR Expires < :now"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":now": &dbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return "", fmt.Errorf("%w: %s", ErrLeaseHeld, key)
		}
		return "", fmt.Errorf("failed to acquire lease: %w", err)
	}
	return leaseID, nil
}

// Release deletes the lease only if it is still ours.
func (l *DynamoLocker) Release(ctx context.Context, key, leaseID string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: key},
		},
		ConditionExpression: aws.String("LeaseID = :id"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":id": &dbtypes.AttributeValueMemberS{Value: leaseID},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("lease on %s was taken over", key)
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *dbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
