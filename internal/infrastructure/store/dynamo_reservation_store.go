package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/order-fulfillment/internal/reservation"
)

const (
	primaryPrefix = "RES#"
	indexPrefix   = "EXP#"
	// expiryPartition is the fixed GSI1 partition that makes the expiry
	// index queryable in schedule order.
	expiryPartition = "EXPIRY"
)

// DynamoReservationStore persists each reservation as two items in one
// table: the primary record (RES#id, expiring via the table's TTL
// attribute) and the expiry-index entry (EXP#id, queryable through GSI1 by
// schedule time, carrying the full payload so rollback works even after the
// primary lapsed). The index entry is the claim token: deleting it with
// ALL_OLD decides which of any racing confirm/cancel/sweep callers wins.
type DynamoReservationStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoReservation mirrors the stored item shape.
type dynamoReservation struct {
	PK        string `dynamodbav:"pk"`
	GSI1PK    string `dynamodbav:"gsi1pk,omitempty"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
	Payload   string `dynamodbav:"payload"`
}

func NewDynamoReservationStore(client *dynamodb.Client, tableName string) *DynamoReservationStore {
	return &DynamoReservationStore{client: client, tableName: tableName}
}

func (s *DynamoReservationStore) Save(ctx context.Context, res *reservation.StockReservation) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	primary := dynamoReservation{
		PK:        primaryPrefix + res.ReservationID,
		ExpiresAt: res.ExpiresAt.Unix(),
		TTL:       res.ExpiresAt.Unix(),
		Payload:   string(payload),
	}
	index := dynamoReservation{
		PK:        indexPrefix + res.ReservationID,
		GSI1PK:    expiryPartition,
		ExpiresAt: res.ExpiresAt.Unix(),
		Payload:   string(payload),
	}

	primaryItem, err := attributevalue.MarshalMap(primary)
	if err != nil {
		return fmt.Errorf("failed to marshal primary item: %w", err)
	}
	indexItem, err := attributevalue.MarshalMap(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index item: %w", err)
	}

	// Both structures land or neither does.
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: primaryItem}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: indexItem}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

func (s *DynamoReservationStore) Find(ctx context.Context, reservationID string) (*reservation.StockReservation, error) {
	res, err := s.getItem(ctx, primaryPrefix+reservationID)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	// Primary lapsed via TTL; the index entry is still authoritative for
	// recovery.
	res, err = s.getItem(ctx, indexPrefix+reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, reservation.ErrReservationNotFound
	}
	return res, nil
}

func (s *DynamoReservationStore) getItem(ctx context.Context, pk string) (*reservation.StockReservation, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return unmarshalReservation(result.Item)
}

func (s *DynamoReservationStore) Claim(ctx context.Context, reservationID string) (*reservation.StockReservation, error) {
	// Deleting the index entry is the atomic claim: exactly one caller
	// receives ALL_OLD.
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: indexPrefix + reservationID},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to claim reservation: %w", err)
	}

	// Best-effort cleanup of the primary; its TTL removes it anyway.
	_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: primaryPrefix + reservationID},
		},
	})

	return unmarshalReservation(result.Attributes)
}

func (s *DynamoReservationStore) Expired(ctx context.Context, now time.Time) ([]*reservation.StockReservation, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("gsi1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk AND expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: expiryPartition},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query expiry index: %w", err)
	}

	reservations := make([]*reservation.StockReservation, 0, len(result.Items))
	for _, item := range result.Items {
		res, err := unmarshalReservation(item)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

func unmarshalReservation(item map[string]types.AttributeValue) (*reservation.StockReservation, error) {
	var stored dynamoReservation
	if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation item: %w", err)
	}
	var res reservation.StockReservation
	if err := json.Unmarshal([]byte(stored.Payload), &res); err != nil {
		return nil, fmt.Errorf("failed to decode reservation payload: %w", err)
	}
	return &res, nil
}

var _ reservation.Store = (*DynamoReservationStore)(nil)
