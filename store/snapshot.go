package store

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Snapshot is an immutable view of the value read at a path.
type Snapshot struct {
	key   string
	value types.AttributeValue

	// order, when set, fixes the iteration order of children (query results).
	order []string
}

// NewSnapshot wraps a value read at a path whose last segment is key.
// A nil value describes a missing path.
func NewSnapshot(key string, value types.AttributeValue) *Snapshot {
	return &Snapshot{key: key, value: value}
}

// NewOrderedSnapshot wraps a map value whose children iterate in the given key order.
func NewOrderedSnapshot(key string, value *types.AttributeValueMemberM, order []string) *Snapshot {
	return &Snapshot{key: key, value: value, order: order}
}

// Key returns the last segment of the path the snapshot was read from.
func (s *Snapshot) Key() string { return s.key }

// Value returns the raw attribute value (nil when missing).
func (s *Snapshot) Value() types.AttributeValue { return s.value }

// Exists reports whether the path holds data. NULL values and empty maps don't count.
func (s *Snapshot) Exists() bool {
	switch v := s.value.(type) {
	case nil:
		return false
	case *types.AttributeValueMemberNULL:
		return false
	case *types.AttributeValueMemberM:
		return len(v.Value) > 0
	default:
		return true
	}
}

// Decode unmarshals the value into out using dynamodbav struct tags.
func (s *Snapshot) Decode(out any) error {
	if !s.Exists() {
		return ErrNotFound
	}
	return attributevalue.Unmarshal(s.value, out)
}

// Child returns the snapshot of a direct child. Missing children yield a
// snapshot that doesn't exist.
func (s *Snapshot) Child(name string) *Snapshot {
	m, ok := s.value.(*types.AttributeValueMemberM)
	if !ok {
		return NewSnapshot(name, nil)
	}
	return NewSnapshot(name, m.Value[name])
}

// Keys returns child keys: in query order when the snapshot came from an
// ordered query, otherwise sorted ascending.
func (s *Snapshot) Keys() []string {
	m, ok := s.value.(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	if s.order != nil {
		return append([]string(nil), s.order...)
	}
	keys := make([]string, 0, len(m.Value))
	for k := range m.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Children returns the child snapshots in Keys order.
func (s *Snapshot) Children() []*Snapshot {
	keys := s.Keys()
	children := make([]*Snapshot, 0, len(keys))
	for _, k := range keys {
		children = append(children, s.Child(k))
	}
	return children
}

// NumChildren returns how many children the snapshot has.
func (s *Snapshot) NumChildren() int {
	if m, ok := s.value.(*types.AttributeValueMemberM); ok {
		return len(m.Value)
	}
	return 0
}

// lookup walks fields below a value.
func lookup(v types.AttributeValue, fields []string) types.AttributeValue {
	for _, f := range fields {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		v = m.Value[f]
	}
	return v
}
