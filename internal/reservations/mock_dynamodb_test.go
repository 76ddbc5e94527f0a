package reservations

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory stand-in for the DynamoDB calls the reservations
// store issues. It interprets only the exact expressions the store builds.
// NOTE: intentionally minimal and not production-grade.
type mockDynamo struct {
	mu         sync.Mutex
	tables     map[string]map[string]map[string]types.AttributeValue
	keyAttrs   map[string]string // table -> PK attribute name
	batchSizes []int
	batchErr   error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{
			"reservations": {},
			"campaigns":    {},
		},
		keyAttrs: map[string]string{
			"reservations": "reservation_id",
			"campaigns":    "campaign_id",
		},
	}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numAttr(item map[string]types.AttributeValue, name string) int {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.Atoi(v.Value)
		return n
	}
	return 0
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{}
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *in.TableName
	k := strAttr(in.Item, m.keyAttrs[table])
	m.tables[table][k] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *in.TableName
	k := strAttr(in.Key, m.keyAttrs[table])
	item, ok := m.tables[table][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *in.TableName
	k := strAttr(in.Key, m.keyAttrs[table])
	item, ok := m.tables[table][k]

	if in.ConditionExpression != nil {
		cond := *in.ConditionExpression
		switch {
		case strings.Contains(cond, "attribute_exists") && !ok:
			return nil, conditionFailed()
		case cond == "#st = :expected":
			if !ok {
				return nil, conditionFailed()
			}
			expected := in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS).Value
			if strAttr(item, "status") != expected {
				return nil, conditionFailed()
			}
		}
	}
	if !ok {
		return nil, errors.New("item not found")
	}

	// apply the store's SET expressions
	if v, ok := in.ExpressionAttributeValues[":new"]; ok {
		item["status"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":fr"]; ok {
		item["failure_reason"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	m.tables[table][k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *in.TableName
	campaignID := in.ExpressionAttributeValues[":cid"].(*types.AttributeValueMemberS).Value
	status := ""
	if v, ok := in.ExpressionAttributeValues[":status"]; ok {
		status = v.(*types.AttributeValueMemberS).Value
	}

	out := &dyn.QueryOutput{}
	for _, item := range m.tables[table] {
		if strAttr(item, "campaign_id") != campaignID {
			continue
		}
		if status != "" && strAttr(item, "status") != status {
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (m *mockDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return &dyn.ScanOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// first pass: condition checks so the transaction is all-or-nothing.
	// cancellation reasons are positional, matching the real service.
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, it := range in.TransactItems {
		code := "None"
		if p := it.Put; p != nil && p.ConditionExpression != nil {
			table := *p.TableName
			k := strAttr(p.Item, m.keyAttrs[table])
			if _, exists := m.tables[table][k]; exists {
				code = "ConditionalCheckFailed"
			}
		}
		if u := it.Update; u != nil {
			table := *u.TableName
			k := strAttr(u.Key, m.keyAttrs[table])
			item, exists := m.tables[table][k]
			cond := ""
			if u.ConditionExpression != nil {
				cond = *u.ConditionExpression
			}
			switch {
			case !exists:
				code = "ConditionalCheckFailed"
			case strings.Contains(cond, "#st = :active"):
				active := u.ExpressionAttributeValues[":active"].(*types.AttributeValueMemberS).Value
				if strAttr(item, "status") != active {
					code = "ConditionalCheckFailed"
				}
			case strings.Contains(cond, "#st = :expected"):
				expected := u.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS).Value
				if strAttr(item, "status") != expected {
					code = "ConditionalCheckFailed"
				}
			case strings.Contains(cond, "current_quantity >= :one"):
				if numAttr(item, "current_quantity") < 1 {
					code = "ConditionalCheckFailed"
				}
			}
		}
		if code != "None" {
			failed = true
		}
		c := code
		reasons[i] = types.CancellationReason{Code: &c}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	// second pass: apply writes
	for _, it := range in.TransactItems {
		if p := it.Put; p != nil {
			table := *p.TableName
			k := strAttr(p.Item, m.keyAttrs[table])
			m.tables[table][k] = p.Item
		}
		if u := it.Update; u != nil {
			table := *u.TableName
			k := strAttr(u.Key, m.keyAttrs[table])
			item := m.tables[table][k]
			expr := *u.UpdateExpression
			if strings.Contains(expr, "current_quantity + :one") {
				item["current_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(numAttr(item, "current_quantity") + 1)}
			}
			if strings.Contains(expr, "current_quantity - :one") {
				item["current_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(numAttr(item, "current_quantity") - 1)}
			}
			if strings.Contains(expr, "#st = :new") {
				item["status"] = u.ExpressionAttributeValues[":new"]
			}
			if v, ok := u.ExpressionAttributeValues[":fr"]; ok {
				item["failure_reason"] = v
			}
			m.tables[table][k] = item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) BatchWriteItem(ctx context.Context, in *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	for table, writes := range in.RequestItems {
		m.batchSizes = append(m.batchSizes, len(writes))
		for _, w := range writes {
			if w.PutRequest == nil {
				continue
			}
			k := strAttr(w.PutRequest.Item, m.keyAttrs[table])
			m.tables[table][k] = w.PutRequest.Item
		}
	}
	return &dyn.BatchWriteItemOutput{}, nil
}

func (m *mockDynamo) currentQuantity(campaignID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tables["campaigns"][campaignID]
	if !ok {
		return -1
	}
	n, ok := item["current_quantity"].(*types.AttributeValueMemberN)
	if !ok {
		return -1
	}
	v, _ := strconv.Atoi(n.Value)
	return v
}
