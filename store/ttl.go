package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Managed attributes. They are written by the Store and stripped from reads.
const (
	attrKey        = "pk"
	attrCollection = "_collection"
	attrFeed       = "_feed"
	attrTTL        = "ttl"
)

// Attribute names stream consumers read from item images.
const (
	KeyAttribute        = attrKey
	CollectionAttribute = attrCollection
	TTLAttribute        = attrTTL
)

// IsDeleted checks if an item has an expired TTL (is soft-deleted).
func IsDeleted(item map[string]types.AttributeValue) bool {
	ttlAttr, exists := item[attrTTL]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr returns the filter expression that excludes deleted items.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for the TTL filter.
func TTLFilterNames() map[string]string {
	return map[string]string{"#ttl": attrTTL}
}

// TTLFilterValues returns expression attribute values for the TTL filter.
func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}
}

// LiveRecordCondition returns the condition guarding nested writes:
// the record exists and hasn't been soft-deleted.
func LiveRecordCondition() string {
	return "attribute_exists(#pk) AND attribute_not_exists(#ttl)"
}

// stripManaged returns the item without store-managed attributes.
func stripManaged(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		switch k {
		case attrKey, attrCollection, attrFeed, attrTTL:
			continue
		}
		out[k] = v
	}
	return out
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
