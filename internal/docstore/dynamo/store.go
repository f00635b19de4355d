// Package dynamo is a single-table DynamoDB document store.
//
// Items are partitioned per user: PK is APP#{app}#USER#{scope}; records use
// SK {KIND}#{id} and the goal lives at SK SETTINGS#incomeGoal.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"saldo/internal/core"
	"saldo/internal/docstore"
)

const (
	goalSK       = "SETTINGS#incomeGoal"
	typeRecord   = "Record"
	typeSettings = "Settings"
)

type recordItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Type      string `dynamodbav:"Type"`
	ID        string `dynamodbav:"ID"`
	Name      string `dynamodbav:"Name"`
	Amount    string `dynamodbav:"Amount"`
	Date      string `dynamodbav:"Date"`
	Paid      bool   `dynamodbav:"Paid"`
	ImageURL  string `dynamodbav:"ImageURL,omitempty"`
	ImagePath string `dynamodbav:"ImagePath,omitempty"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

type settingsItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Type      string `dynamodbav:"Type"`
	Amount    string `dynamodbav:"Amount"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

type Store struct {
	client Client
	table  string
	appID  string
	now    func() time.Time
}

var (
	_ docstore.Store  = (*Store)(nil)
	_ docstore.Pinger = (*Store)(nil)
)

func New(client Client, table, appID string) *Store {
	return &Store{client: client, table: table, appID: appID, now: time.Now}
}

func (s *Store) pk(scope string) string {
	return fmt.Sprintf("APP#%s#USER#%s", s.appID, scope)
}

func skPrefix(kind core.Kind) string {
	return strings.ToUpper(kind.String()) + "#"
}

func (s *Store) key(scope, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: s.pk(scope)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *Store) Create(ctx context.Context, scope string, kind core.Kind, doc docstore.Document) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	id := docstore.NewID()
	now := s.now().UTC().Format(time.RFC3339Nano)
	it := recordItem{
		PK:        s.pk(scope),
		SK:        skPrefix(kind) + id,
		Type:      typeRecord,
		ID:        id,
		Name:      doc.Name,
		Amount:    doc.Amount.String(),
		Date:      doc.Date.Format(),
		Paid:      kind == core.KindDebt && doc.Paid,
		ImageURL:  doc.Attachment.URL,
		ImagePath: doc.Attachment.Path,
		CreatedAt: now,
		UpdatedAt: now,
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}
	return id, nil
}

func (s *Store) SetPaid(ctx context.Context, scope, id string, paid bool) error {
	update := expression.Set(expression.Name("Paid"), expression.Value(paid)).
		Set(expression.Name("UpdatedAt"), expression.Value(s.now().UTC().Format(time.RFC3339Nano)))
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(scope, skPrefix(core.KindDebt)+id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update paid: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope string, kind core.Kind, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(scope, skPrefix(kind)+id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if isConditionFailed(err) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, scope string, kind core.Kind, id string) (docstore.Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(scope, skPrefix(kind)+id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get record: %w", err)
	}
	if len(out.Item) == 0 {
		return docstore.Document{}, core.ErrNotFound
	}
	return decodeRecord(out.Item)
}

// List pages through the partition; SK order is creation order because ids
// are ULIDs.
func (s *Store) List(ctx context.Context, scope string, kind core.Kind) ([]docstore.Document, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(s.pk(scope))).
		And(expression.Key("SK").BeginsWith(skPrefix(kind)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		docs  []docstore.Document
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         start,
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("query records: %w", err)
		}
		for _, it := range out.Items {
			d, err := decodeRecord(it)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	if kind == core.KindIncome {
		for i := range docs {
			docs[i].Paid = false
		}
	}
	return docs, nil
}

func (s *Store) GetGoal(ctx context.Context, scope string) (core.Goal, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(scope, goalSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return core.Goal{}, false, fmt.Errorf("get goal: %w", err)
	}
	if len(out.Item) == 0 {
		return core.Goal{}, false, nil
	}
	m, ok := amountOf(out.Item["Amount"])
	if !ok || m.Cents <= 0 {
		return core.Goal{}, false, nil
	}
	return core.Goal{Amount: m}, true, nil
}

func (s *Store) PutGoal(ctx context.Context, scope string, goal core.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(settingsItem{
		PK:        s.pk(scope),
		SK:        goalSK,
		Type:      typeSettings,
		Amount:    goal.Amount.String(),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return fmt.Errorf("put goal: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func (s *Store) Close() error { return nil }

// decodeRecord is tolerant of older items whose Amount was written as a
// number or free text and whose Date may not parse.
func decodeRecord(av map[string]types.AttributeValue) (docstore.Document, error) {
	amount := av["Amount"]
	rest := make(map[string]types.AttributeValue, len(av))
	for k, v := range av {
		if k != "Amount" {
			rest[k] = v
		}
	}
	var it recordItem
	if err := attributevalue.UnmarshalMap(rest, &it); err != nil {
		return docstore.Document{}, fmt.Errorf("unmarshal record: %w", err)
	}
	m, _ := amountOf(amount)
	doc := docstore.Document{
		ID:     it.ID,
		Name:   it.Name,
		Amount: m,
		Date:   core.LenientDate(it.Date),
		Paid:   it.Paid,
	}
	if it.ImageURL != "" && it.ImagePath != "" {
		doc.Attachment = core.Attachment{URL: it.ImageURL, Path: it.ImagePath}
	}
	return doc, nil
}

func amountOf(v types.AttributeValue) (core.Money, bool) {
	switch a := v.(type) {
	case *types.AttributeValueMemberS:
		return core.CoerceAmount(a.Value)
	case *types.AttributeValueMemberN:
		return core.CoerceAmount(json.Number(a.Value))
	default:
		return core.Money{}, false
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
