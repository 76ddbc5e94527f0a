package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/Artistsreach/freshonboard-settlement/internal/aws"
	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
)

// campaignIndex is the GSI used for by-campaign reservation queries.
const campaignIndex = "campaign_id-index"

// batchWriteLimit is DynamoDB's per-BatchWriteItem item cap.
const batchWriteLimit = 25

// ErrReservationExists indicates a reservation with the same id was already created;
// the reservation id doubles as the creation idempotency key.
var ErrReservationExists = errors.New("reservation already exists")

// ErrStatusMismatch indicates a conditional status transition found a different
// current status.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// ErrCounterDepleted indicates the campaign counter was already at zero, so there was
// no provisional slot to give back.
var ErrCounterDepleted = errors.New("campaign counter already at zero")

// Store encapsulates operations on the reservations table. It also knows the campaigns
// table name because reservation creation and the counter increment commit in one
// transaction.
type Store struct {
	client         aws.DynamoDBAPI
	tableName      string
	campaignsTable string
	nowFunc        func() time.Time
}

// NewStore creates a new reservations Store.
func NewStore(client aws.DynamoDBAPI, tableName, campaignsTable string) *Store {
	return &Store{
		client:         client,
		tableName:      tableName,
		campaignsTable: campaignsTable,
		nowFunc:        time.Now,
	}
}

// CreateWithCampaignIncrement atomically:
//   - puts the reservation (ConditionExpression attribute_not_exists(reservation_id))
//   - increments the campaign's current_quantity by 1
//
// Either both writes commit or neither does, so the provisional counter can never
// drift from the set of persisted reservations on the creation path.
func (s *Store) CreateWithCampaignIncrement(ctx context.Context, r Reservation) error {
	now := s.nowFunc()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: awsString("attribute_not_exists(reservation_id)"),
			},
		},
		{
			Update: &types.Update{
				TableName: &s.campaignsTable,
				Key: map[string]types.AttributeValue{
					"campaign_id": &types.AttributeValueMemberS{Value: r.CampaignID},
				},
				UpdateExpression:    awsString("SET current_quantity = current_quantity + :one, updated_at = :ua"),
				ConditionExpression: awsString("attribute_exists(campaign_id) AND #st = :active"),
				ExpressionAttributeNames: map[string]string{
					"#st": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one":    &types.AttributeValueMemberN{Value: "1"},
					":active": &types.AttributeValueMemberS{Value: campaigns.StatusActive},
					":ua":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
				},
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// reasons are positional: [0] reservation put, [1] campaign update
			if reasonFailed(tce.CancellationReasons, 0) {
				return ErrReservationExists
			}
			if reasonFailed(tce.CancellationReasons, 1) {
				return fmt.Errorf("campaign %s missing or not active: %w", r.CampaignID, err)
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// ReleaseWithCampaignDecrement atomically moves the reservation out of AUTHORIZED and
// gives its unit back to the campaign counter. Both writes commit or neither does, so
// a transient failure leaves the reservation AUTHORIZED and a redelivered event
// retries the whole release rather than losing the decrement.
//
// Returns ErrStatusMismatch when the reservation already left AUTHORIZED (the
// decrement happened on that earlier transition) and ErrCounterDepleted when the
// counter is already at zero.
func (s *Store) ReleaseWithCampaignDecrement(ctx context.Context, reservationID, campaignID, newStatus, reason string) error {
	now := s.nowFunc()
	updateExpr := "SET #st = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: newStatus},
		":expected": &types.AttributeValueMemberS{Value: StatusAuthorized},
		":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
	}
	if reason != "" {
		updateExpr += ", failure_reason = :fr"
		values[":fr"] = &types.AttributeValueMemberS{Value: reason}
	}

	transactItems := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName: &s.tableName,
				Key: map[string]types.AttributeValue{
					"reservation_id": &types.AttributeValueMemberS{Value: reservationID},
				},
				UpdateExpression:          &updateExpr,
				ConditionExpression:       awsString("#st = :expected"),
				ExpressionAttributeNames:  map[string]string{"#st": "status"},
				ExpressionAttributeValues: values,
			},
		},
		{
			Update: &types.Update{
				TableName: &s.campaignsTable,
				Key: map[string]types.AttributeValue{
					"campaign_id": &types.AttributeValueMemberS{Value: campaignID},
				},
				UpdateExpression:    awsString("SET current_quantity = current_quantity - :one, updated_at = :ua"),
				ConditionExpression: awsString("current_quantity >= :one"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one": &types.AttributeValueMemberN{Value: "1"},
					":ua":  &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
				},
			},
		},
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// reasons are positional: [0] reservation update, [1] counter decrement
			if reasonFailed(tce.CancellationReasons, 0) {
				return ErrStatusMismatch
			}
			if reasonFailed(tce.CancellationReasons, 1) {
				return ErrCounterDepleted
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func reasonFailed(reasons []types.CancellationReason, i int) bool {
	if i >= len(reasons) || reasons[i].Code == nil {
		return false
	}
	return *reasons[i].Code == "ConditionalCheckFailed"
}

// conditionalCheckFailed reports whether err is DynamoDB's conditional check
// failure, in either its typed or generic API error shape.
func conditionalCheckFailed(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

// Get fetches a reservation by reservation_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, reservationID string) (*Reservation, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reservation_id": &types.AttributeValueMemberS{Value: reservationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r Reservation
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal reservation: %w", err)
	}
	return &r, nil
}

// ListByCampaignStatus queries the campaign GSI for reservations in the given status.
func (s *Store) ListByCampaignStatus(ctx context.Context, campaignID, status string) ([]Reservation, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(campaignIndex),
		KeyConditionExpression: awsString("campaign_id = :cid"),
		FilterExpression:       awsString("#st = :status"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid":    &types.AttributeValueMemberS{Value: campaignID},
			":status": &types.AttributeValueMemberS{Value: status},
		},
	}

	var result []Reservation
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query reservations: %w", err)
		}
		var page []Reservation
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal reservations: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return result, nil
}

// UpdateStatus conditionally transitions the reservation from expectedStatus to
// newStatus and records an optional failure reason. Returns ErrStatusMismatch if the
// current status differs, which makes redelivered webhook events safe to replay.
func (s *Store) UpdateStatus(ctx context.Context, reservationID, expectedStatus, newStatus, reason string) error {
	now := s.nowFunc()
	updateExpr := "SET #st = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: newStatus},
		":expected": &types.AttributeValueMemberS{Value: expectedStatus},
		":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
	}
	if reason != "" {
		updateExpr += ", failure_reason = :fr"
		values[":fr"] = &types.AttributeValueMemberS{Value: reason}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reservation_id": &types.AttributeValueMemberS{Value: reservationID},
		},
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("#st = :expected"),
		ExpressionAttributeNames:  map[string]string{"#st": "status"},
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if conditionalCheckFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// SetStatus unconditionally overwrites the reservation status (last-write-wins). Used
// by webhook reconciliation where the processor's report is authoritative.
func (s *Store) SetStatus(ctx context.Context, reservationID, newStatus, reason string) error {
	now := s.nowFunc()
	updateExpr := "SET #st = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new": &types.AttributeValueMemberS{Value: newStatus},
		":ua":  &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
	}
	if reason != "" {
		updateExpr += ", failure_reason = :fr"
		values[":fr"] = &types.AttributeValueMemberS{Value: reason}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reservation_id": &types.AttributeValueMemberS{Value: reservationID},
		},
		UpdateExpression: &updateExpr,
		// guard against creating a phantom item for unknown ids
		ConditionExpression:       awsString("attribute_exists(reservation_id)"),
		ExpressionAttributeNames:  map[string]string{"#st": "status"},
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if conditionalCheckFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// WriteOutcomes persists settlement outcomes as full-item puts via BatchWriteItem,
// chunked at the 25-item batch limit. Chunks are independent: a failed chunk is
// reported but does not stop the remaining chunks.
func (s *Store) WriteOutcomes(ctx context.Context, outcomes []Reservation) error {
	now := s.nowFunc()
	var firstErr error

	for start := 0; start < len(outcomes); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(outcomes) {
			end = len(outcomes)
		}

		writes := make([]types.WriteRequest, 0, end-start)
		for _, r := range outcomes[start:end] {
			r.UpdatedAt = now
			item, err := attributevalue.MarshalMap(r)
			if err != nil {
				return fmt.Errorf("marshal reservation %s: %w", r.ReservationID, err)
			}
			writes = append(writes, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		out, err := s.client.BatchWriteItem(ctx, &dyn.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: writes,
			},
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batch write [%d:%d]: %w", start, end, err)
			}
			continue
		}
		if unprocessed := out.UnprocessedItems[s.tableName]; len(unprocessed) > 0 && firstErr == nil {
			firstErr = fmt.Errorf("batch write [%d:%d]: %d unprocessed items", start, end, len(unprocessed))
		}
	}
	return firstErr
}

func awsString(s string) *string { return &s }
