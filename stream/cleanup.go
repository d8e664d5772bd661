// Package stream provides DynamoDB Streams handlers that keep mirrored
// relations consistent after a record is deleted.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/cookhouse/store"
)

// Remover is the store operation the handler needs.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// Handler processes DynamoDB stream events for mirror cleanup.
type Handler struct {
	store    Remover
	registry *store.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s Remover, registry *store.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		registry: registry,
		logger:   logger,
	}
}

// HandleMirrorCleanup processes DynamoDB stream events. When a record with
// mirrored relations is deleted, the reverse side of every membership it
// held is removed, e.g. users/{handle}/likedPosts/{id} for each handle in a
// deleted post's likedBy. It is meant to be used as an AWS Lambda handler.
func (h *Handler) HandleMirrorCleanup(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	image, ok := deletedImage(record)
	if !ok {
		return nil
	}

	collection := getStringAttr(image, store.CollectionAttribute)
	id := getStringAttr(image, store.KeyAttribute)
	mirrors := h.registry.MirrorsOf(collection)
	if id == "" || len(mirrors) == 0 {
		return nil
	}

	h.logger.InfoContext(ctx, "processing mirror cleanup",
		"collection", collection,
		"id", id,
	)

	removed := 0
	for _, m := range mirrors {
		for _, member := range getMapKeys(image, m.Field) {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, reverse := m.Paths(id, member)
			if err := h.store.Remove(ctx, reverse); err != nil && !errors.Is(err, store.ErrNotFound) {
				h.logger.WarnContext(ctx, "failed to remove mirror entry",
					"path", reverse,
					"error", err,
				)
				// Continue - idempotent, will retry
				continue
			}
			removed++
		}
	}

	h.logger.InfoContext(ctx, "mirror cleanup completed",
		"collection", collection,
		"id", id,
		"entriesRemoved", removed,
	)
	return nil
}

// deletedImage returns the image of a record that was just deleted: a MODIFY
// that newly sets the TTL (soft delete), or a REMOVE of a record that was
// never soft-deleted (hard delete).
func deletedImage(record events.DynamoDBEventRecord) (map[string]events.DynamoDBAttributeValue, bool) {
	switch record.EventName {
	case "MODIFY":
		oldTTL := getNumberAttr(record.Change.OldImage, store.TTLAttribute)
		newTTL := getNumberAttr(record.Change.NewImage, store.TTLAttribute)
		if oldTTL != 0 || newTTL == 0 {
			return nil, false
		}
		return record.Change.NewImage, true
	case "REMOVE":
		if getNumberAttr(record.Change.OldImage, store.TTLAttribute) != 0 {
			// Already cleaned when the TTL was set.
			return nil, false
		}
		return record.Change.OldImage, len(record.Change.OldImage) > 0
	}
	return nil, false
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getMapKeys returns the sorted keys of a map attribute.
func getMapKeys(image map[string]events.DynamoDBAttributeValue, key string) []string {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeMap {
		return nil
	}
	m := v.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
