package campaigns

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
)

// ErrAlreadySettled indicates the campaign already left ACTIVE; the terminal status
// transition happens at most once.
var ErrAlreadySettled = errors.New("campaign already settled")

// Store encapsulates operations on the campaigns table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new campaigns Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a campaign by campaign_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, campaignID string) (*Campaign, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"campaign_id": &types.AttributeValueMemberS{Value: campaignID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Campaign
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal campaign: %w", err)
	}
	return &c, nil
}

// ListDueActive scans for campaigns that are still ACTIVE with release_date <= now.
// The due set is small (campaigns past deadline but unsettled live for at most one
// scheduler period), so a filtered scan is acceptable here.
func (s *Store) ListDueActive(ctx context.Context, now time.Time) ([]Campaign, error) {
	input := &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("#st = :active AND release_date <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberS{Value: StatusActive},
			":now":    &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
	}

	var due []Campaign
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan campaigns: %w", err)
		}
		var page []Campaign
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal campaigns: %w", err)
		}
		due = append(due, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return due, nil
}

// SetStatus transitions the campaign out of ACTIVE exactly once. Returns
// ErrAlreadySettled when another pass already set a terminal status.
func (s *Store) SetStatus(ctx context.Context, campaignID, newStatus string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"campaign_id": &types.AttributeValueMemberS{Value: campaignID},
		},
		UpdateExpression:    awsString("SET #st = :new, updated_at = :ua"),
		ConditionExpression: awsString("#st = :active"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":    &types.AttributeValueMemberS{Value: newStatus},
			":active": &types.AttributeValueMemberS{Value: StatusActive},
			":ua":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if conditionalCheckFailed(err) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

func conditionalCheckFailed(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
