package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vehicle-advisor/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Transcript.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Transcript is a write-mostly audit log of conversations. Live state is
// never restored from it.
type Transcript struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewTranscript creates a transcript writer over tableName.
func NewTranscript(api dynamodbAPI, tableName string) (*Transcript, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Transcript{api: api, tableName: tableName, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// turnSK returns the sort key for a turn recorded at ts.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

func (t *Transcript) ttlValue() int64 {
	return t.now().Add(ttlDuration).Unix()
}

// RecordTurn stores one completed turn together with the updated metadata.
func (t *Transcript) RecordTurn(ctx context.Context, conversationID string, class domain.VehicleClass, turn domain.ConversationTurn, status string, candidates, turns int) error {
	rec := t.NewTurn(conversationID, turn, status, candidates)
	meta := t.NewMeta(conversationID, class, turns, status)
	if err := t.SaveTurn(ctx, rec, meta); err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	return nil
}

// RecordOutcome replaces the conversation metadata with its final outcome.
func (t *Transcript) RecordOutcome(ctx context.Context, conversationID string, class domain.VehicleClass, turns int, outcome string) error {
	if err := t.UpsertMeta(ctx, t.NewMeta(conversationID, class, turns, outcome)); err != nil {
		return fmt.Errorf("repository: RecordOutcome: %w", err)
	}
	return nil
}

// GetTranscript queries the most recent TURN# items of a conversation and
// returns them in chronological order.
func (t *Transcript) GetTranscript(ctx context.Context, conversationID string, limit int) ([]domain.TranscriptTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(t.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := t.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetTranscript query: %w", err)
	}

	turns := make([]domain.TranscriptTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetTranscript unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetMeta returns the metadata record. The boolean is false when the
// conversation has never been recorded.
func (t *Transcript) GetMeta(ctx context.Context, conversationID string) (domain.ConversationMeta, bool, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationMeta{}, false, fmt.Errorf("repository: GetMeta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationMeta{}, false, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.ConversationMeta{}, false, fmt.Errorf("repository: GetMeta decode turns: %w", err)
	}
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		VehicleClass:   optStrAttr(out.Item, "vehicleClass"),
		LastActivity:   optStrAttr(out.Item, "lastActivity"),
		Turns:          turns,
		Outcome:        optStrAttr(out.Item, "outcome"),
	}, true, nil
}

// UpsertMeta writes or replaces the conversation metadata record.
func (t *Transcript) UpsertMeta(ctx context.Context, meta domain.ConversationMeta) error {
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: UpsertMeta: PK and SK are required")
	}
	_, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      metaItem(meta),
	})
	if err != nil {
		return fmt.Errorf("repository: UpsertMeta: %w", err)
	}
	return nil
}

// SaveTurn writes the turn and updated metadata in one transaction.
func (t *Transcript) SaveTurn(ctx context.Context, turn domain.TranscriptTurn, meta domain.ConversationMeta) error {
	if turn.PK == "" || turn.SK == "" {
		return errors.New("repository: SaveTurn: turn PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := t.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(t.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(t.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// NewTurn constructs a TranscriptTurn keyed by the current time.
func (t *Transcript) NewTurn(conversationID string, turn domain.ConversationTurn, status string, candidates int) domain.TranscriptTurn {
	return domain.TranscriptTurn{
		PK:             convPK(conversationID),
		SK:             turnSK(t.now()),
		ConversationID: conversationID,
		Question:       turn.Question,
		Answer:         turn.Answer,
		Status:         status,
		Candidates:     candidates,
		TTL:            t.ttlValue(),
	}
}

// NewMeta constructs a ConversationMeta record.
func (t *Transcript) NewMeta(conversationID string, class domain.VehicleClass, turns int, outcome string) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		VehicleClass:   string(class),
		LastActivity:   t.now().UTC().Format(time.RFC3339),
		Turns:          turns,
		Outcome:        outcome,
		TTL:            t.ttlValue(),
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.TranscriptTurn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.TranscriptTurn{}, err
	}
	turn := domain.TranscriptTurn{
		PK:             pk,
		SK:             sk,
		ConversationID: optStrAttr(item, "conversationId"),
		Question:       question,
		Answer:         optStrAttr(item, "answer"),
		Status:         optStrAttr(item, "status"),
	}
	if _, ok := item["candidates"]; ok {
		if turn.Candidates, err = intAttr(item, "candidates"); err != nil {
			return domain.TranscriptTurn{}, err
		}
	}
	return turn, nil
}

func turnItem(turn domain.TranscriptTurn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: turn.PK},
		"SK":             &types.AttributeValueMemberS{Value: turn.SK},
		"conversationId": &types.AttributeValueMemberS{Value: turn.ConversationID},
		"question":       &types.AttributeValueMemberS{Value: turn.Question},
		"answer":         &types.AttributeValueMemberS{Value: turn.Answer},
		"status":         &types.AttributeValueMemberS{Value: turn.Status},
		"candidates":     &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Candidates)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.TTL, 10)},
	}
}

func metaItem(meta domain.ConversationMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: meta.PK},
		"SK":             &types.AttributeValueMemberS{Value: meta.SK},
		"conversationId": &types.AttributeValueMemberS{Value: meta.ConversationID},
		"vehicleClass":   &types.AttributeValueMemberS{Value: meta.VehicleClass},
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"outcome":        &types.AttributeValueMemberS{Value: meta.Outcome},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
