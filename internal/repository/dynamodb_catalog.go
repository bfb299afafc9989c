package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vehicle-advisor/internal/domain"
)

const skPrefixItem = "ITEM#"

// DynamoCatalog reads catalog records from a single-table layout where every
// record of a class shares the partition key CLASS#<class>.
type DynamoCatalog struct {
	api       dynamodb.QueryAPIClient
	tableName string
	logger    *slog.Logger
}

// NewDynamoCatalog creates a catalog reader over tableName. A nil logger
// uses slog.Default.
func NewDynamoCatalog(api dynamodb.QueryAPIClient, tableName string, logger *slog.Logger) (*DynamoCatalog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoCatalog{api: api, tableName: tableName, logger: logger}, nil
}

func classPK(class domain.VehicleClass) string {
	return "CLASS#" + string(class)
}

// Fetch pages through the class partition in sort key order, skipping offset
// items and reading at most limit. An item without an id or name is dropped
// with a warning and still counts toward limit, so pages stay aligned.
func (c *DynamoCatalog) Fetch(ctx context.Context, class domain.VehicleClass, limit, offset int) ([]domain.CatalogRecord, error) {
	if limit <= 0 {
		return nil, errors.New("repository: Fetch: limit must be positive")
	}
	if offset < 0 {
		return nil, errors.New("repository: Fetch: offset must not be negative")
	}

	p := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: classPK(class)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixItem},
		},
		Limit: aws.Int32(int32(min(limit+offset, 1000))),
	})

	records := make([]domain.CatalogRecord, 0, limit)
	skipped, taken := 0, 0
	for p.HasMorePages() && taken < limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: Fetch query: %w", err)
		}
		for _, item := range page.Items {
			if skipped < offset {
				skipped++
				continue
			}
			taken++
			rec, ignored, err := itemToRecord(item)
			if err != nil {
				c.logger.Warn("dropping catalog item", "class", class, "sk", optStrAttr(item, "SK"), "err", err)
			} else {
				if len(ignored) > 0 {
					c.logger.Warn("ignoring malformed catalog attributes", "id", rec.ID, "attributes", ignored)
				}
				records = append(records, rec)
			}
			if taken == limit {
				break
			}
		}
	}
	return records, nil
}

// itemToRecord converts a catalog item. Only id and name are required. A
// malformed optional attribute is left unset and its name returned in
// ignored; the normalizer treats it as unknown.
func itemToRecord(item map[string]types.AttributeValue) (rec domain.CatalogRecord, ignored []string, err error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.CatalogRecord{}, nil, err
	}
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.CatalogRecord{}, nil, err
	}
	rec = domain.CatalogRecord{
		ID:           id,
		Name:         name,
		Brand:        optStrAttr(item, "brand"),
		PriceDisplay: optStrAttr(item, "price_display"),
		ImageURL:     optStrAttr(item, "image_url"),
		PageURL:      optStrAttr(item, "page_url"),
	}
	if rec.PriceNumeric, err = optFloatAttr(item, "price_numeric"); err != nil {
		ignored = append(ignored, "price_numeric")
	}
	if rec.Rating, err = optFloatAttr(item, "rating_value"); err != nil {
		ignored = append(ignored, "rating_value")
	}
	if _, ok := item["review_count"]; ok {
		if n, err := intAttr(item, "review_count"); err != nil {
			ignored = append(ignored, "review_count")
		} else {
			rec.ReviewCount = &n
		}
	}
	rec.Specifications = specsAttr(item, "detailed_specifications")
	return rec, ignored, nil
}

func optStrAttr(item map[string]types.AttributeValue, key string) string {
	s, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}

// optFloatAttr treats a missing or NULL attribute as absent.
func optFloatAttr(item map[string]types.AttributeValue, key string) (*float64, error) {
	switch v := item[key].(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberN:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("repository: parse attribute %q: %w", key, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("repository: attribute %q is not a number", key)
	}
}

// specsAttr reads a map of string maps. Values of other shapes are skipped.
func specsAttr(item map[string]types.AttributeValue, key string) map[string]map[string]string {
	groups, ok := item[key].(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]string, len(groups.Value))
	for group, v := range groups.Value {
		entries, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			continue
		}
		values := make(map[string]string, len(entries.Value))
		for k, ev := range entries.Value {
			if s, ok := ev.(*types.AttributeValueMemberS); ok {
				values[k] = s.Value
			}
		}
		out[group] = values
	}
	return out
}
