// Package memstore is an in-memory implementation of the store operation
// set. It follows the same path rules as store.Store: nested writes need a
// live record and existing parent maps, multi-path updates are all-or-nothing,
// and removing a missing path is a no-op.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cookhouse/store"
)

// Store keeps records per collection, each as a map attribute value.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]*types.AttributeValueMemberM
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]map[string]*types.AttributeValueMemberM)}
}

// Get reads the value at path.
func (s *Store) Get(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := store.ParsePath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p.IsCollection() {
		records := make(map[string]types.AttributeValue, len(s.data[p.Collection]))
		for k, rec := range s.data[p.Collection] {
			records[k] = clone(rec)
		}
		return store.NewSnapshot(p.Collection, &types.AttributeValueMemberM{Value: records}), nil
	}

	rec, ok := s.data[p.Collection][p.Key]
	if !ok {
		return store.NewSnapshot(p.Name(), nil), nil
	}
	return store.NewSnapshot(p.Name(), clone(walk(rec, p.Fields))), nil
}

// Push stores value under a generated key below path and returns the key.
func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	p, err := store.ParsePath(path)
	if err != nil {
		return "", err
	}

	key := store.NewKey()
	if p.IsCollection() {
		rec, err := marshalRecord(value)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.data[p.Collection][key]; exists {
			return "", store.ErrAlreadyExists
		}
		s.putLocked(p.Collection, key, rec)
		return key, nil
	}

	if err := s.Update(ctx, map[string]any{store.JoinPath(p.String(), key): value}); err != nil {
		return "", err
	}
	return key, nil
}

// Create writes a new record at path, failing with store.ErrAlreadyExists
// when one is stored there.
func (s *Store) Create(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := store.ParsePath(path)
	if err != nil {
		return err
	}
	if !p.IsRecord() {
		return fmt.Errorf("%w: create needs a record path, got %q", store.ErrInvalidPath, path)
	}
	rec, err := marshalRecord(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[p.Collection][p.Key]; exists {
		return store.ErrAlreadyExists
	}
	s.putLocked(p.Collection, p.Key, rec)
	return nil
}

// Set overwrites the value at path. A nil value removes it.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	p, err := store.ParsePath(path)
	if err != nil {
		return err
	}
	if p.IsCollection() {
		return fmt.Errorf("%w: cannot overwrite collection %q", store.ErrInvalidPath, p.Collection)
	}
	if value == nil {
		return s.Remove(ctx, path)
	}
	return s.Update(ctx, map[string]any{path: value})
}

type write struct {
	path  store.Path
	value types.AttributeValue // nil removes
}

// Update applies a multi-path update atomically.
func (s *Store) Update(ctx context.Context, updates map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := make([]string, 0, len(updates))
	for k := range updates {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	writes := make([]write, 0, len(raw))
	for _, r := range raw {
		p, err := store.ParsePath(r)
		if err != nil {
			return err
		}
		if p.IsCollection() {
			return fmt.Errorf("%w: cannot overwrite collection %q", store.ErrInvalidPath, p.Collection)
		}
		for _, w := range writes {
			if within(w.path, p) || within(p, w.path) {
				return fmt.Errorf("%w: %s and %s", store.ErrOverlappingPaths, w.path, p)
			}
		}

		w := write{path: p}
		if updates[r] != nil {
			av, err := attributevalue.Marshal(updates[r])
			if err != nil {
				return fmt.Errorf("marshal %s: %w", p, err)
			}
			if _, isNull := av.(*types.AttributeValueMemberNULL); !isNull {
				w.value = av
			}
		}
		if p.IsRecord() && w.value != nil {
			if _, ok := w.value.(*types.AttributeValueMemberM); !ok {
				return fmt.Errorf("%w: record %s must be a map or struct", store.ErrInvalidValue, p)
			}
		}
		writes = append(writes, w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first so a failing path leaves no partial writes.
	for _, w := range writes {
		if w.path.IsRecord() || w.value == nil {
			continue
		}
		rec, ok := s.data[w.path.Collection][w.path.Key]
		if !ok {
			return store.ErrNotFound
		}
		if _, ok := walk(rec, w.path.Fields[:len(w.path.Fields)-1]).(*types.AttributeValueMemberM); !ok {
			return fmt.Errorf("%w: parent of %s is not a map", store.ErrNotFound, w.path)
		}
	}

	for _, w := range writes {
		s.applyLocked(w)
	}
	return nil
}

func (s *Store) applyLocked(w write) {
	p := w.path
	if p.IsRecord() {
		if w.value == nil {
			delete(s.data[p.Collection], p.Key)
			return
		}
		s.putLocked(p.Collection, p.Key, clone(w.value).(*types.AttributeValueMemberM))
		return
	}

	rec, ok := s.data[p.Collection][p.Key]
	if !ok {
		return
	}
	parent, ok := walk(rec, p.Fields[:len(p.Fields)-1]).(*types.AttributeValueMemberM)
	if !ok {
		return
	}
	name := p.Fields[len(p.Fields)-1]
	if w.value == nil {
		delete(parent.Value, name)
		return
	}
	parent.Value[name] = clone(w.value)
}

func (s *Store) putLocked(collection, key string, rec *types.AttributeValueMemberM) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]*types.AttributeValueMemberM)
	}
	s.data[collection][key] = rec
}

// Remove deletes the value at path. Removing a missing path is a no-op.
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := store.ParsePath(path)
	if err != nil {
		return err
	}
	if p.IsCollection() {
		return fmt.Errorf("%w: cannot remove collection %q", store.ErrInvalidPath, p.Collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(write{path: p})
	return nil
}

// QueryEqual returns the records of collection whose field equals value.
func (s *Store) QueryEqual(ctx context.Context, collection, field, value string) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]types.AttributeValue)
	for k, rec := range s.data[collection] {
		if v, ok := rec.Value[field].(*types.AttributeValueMemberS); ok && v.Value == value {
			records[k] = clone(rec)
		}
	}
	return store.NewSnapshot(collection, &types.AttributeValueMemberM{Value: records}), nil
}

// QueryLast returns the limit records with the greatest orderBy values, ascending.
// Records without a string orderBy field are not indexed.
func (s *Store) QueryLast(ctx context.Context, collection, orderBy string, limit int) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct{ key, order string }
	var hits []hit
	for k, rec := range s.data[collection] {
		if v, ok := rec.Value[orderBy].(*types.AttributeValueMemberS); ok {
			hits = append(hits, hit{key: k, order: v.Value})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].order != hits[j].order {
			return hits[i].order < hits[j].order
		}
		return hits[i].key < hits[j].key
	})
	if limit < 0 {
		limit = 0
	}
	if len(hits) > limit {
		hits = hits[len(hits)-limit:]
	}

	records := make(map[string]types.AttributeValue, len(hits))
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		records[h.key] = clone(s.data[collection][h.key])
		order = append(order, h.key)
	}
	return store.NewOrderedSnapshot(collection, &types.AttributeValueMemberM{Value: records}, order), nil
}

func marshalRecord(value any) (*types.AttributeValueMemberM, error) {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, err
	}
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("%w: record must be a map or struct", store.ErrInvalidValue)
	}
	return m, nil
}

// within reports whether q is p or lies beneath it.
func within(p, q store.Path) bool {
	a, b := p.Segments(), q.Segments()
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func walk(v types.AttributeValue, fields []string) types.AttributeValue {
	for _, f := range fields {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		v = m.Value[f]
	}
	return v
}

// clone deep-copies maps and lists so snapshots never alias stored data.
func clone(v types.AttributeValue) types.AttributeValue {
	switch t := v.(type) {
	case *types.AttributeValueMemberM:
		m := make(map[string]types.AttributeValue, len(t.Value))
		for k, c := range t.Value {
			m[k] = clone(c)
		}
		return &types.AttributeValueMemberM{Value: m}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(t.Value))
		for i, c := range t.Value {
			l[i] = clone(c)
		}
		return &types.AttributeValueMemberL{Value: l}
	default:
		return v
	}
}
