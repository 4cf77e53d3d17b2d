package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/order-fulfillment/internal/reservation"
)

// DynamoLedger keeps the per-product counters in a DynamoDB table keyed by
// product_id. Compare-and-swap is a conditional update on the current
// quantity; a lost race surfaces as a clean conflict, never a partial write.
type DynamoLedger struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoLedger(client *dynamodb.Client, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName}
}

func (l *DynamoLedger) Get(ctx context.Context, productID string) (int64, bool, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to read ledger entry: %w", err)
	}
	if result.Item == nil {
		return 0, false, nil
	}
	qtyAttr, ok := result.Item["quantity"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false, fmt.Errorf("ledger entry for %s has no numeric quantity", productID)
	}
	qty, err := strconv.ParseInt(qtyAttr.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse ledger quantity: %w", err)
	}
	return qty, true, nil
}

func (l *DynamoLedger) CompareAndSwap(ctx context.Context, productID string, old, new int64) (bool, error) {
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
		UpdateExpression:    aws.String("SET quantity = :new"),
		ConditionExpression: aws.String("quantity = :old"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberN{Value: strconv.FormatInt(new, 10)},
			":old": &types.AttributeValueMemberN{Value: strconv.FormatInt(old, 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to swap ledger entry: %w", err)
	}
	return true, nil
}

func (l *DynamoLedger) Init(ctx context.Context, productID string, quantity int64) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
			"quantity":   &types.AttributeValueMemberN{Value: strconv.FormatInt(quantity, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(product_id)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Another caller seeded the counter first; theirs wins.
			return nil
		}
		return fmt.Errorf("failed to initialize ledger entry: %w", err)
	}
	return nil
}

var _ reservation.Ledger = (*DynamoLedger)(nil)
