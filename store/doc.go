// Package store provides a path-addressed document store on DynamoDB.
//
// The forum keeps its data as a tree: "posts/{id}", "posts/{id}/comments/{cid}",
// "users/{handle}/likedPosts/{postId}". Each top-level collection is a
// DynamoDB table, each record an item keyed by "pk", and everything below a
// record lives inside the item as nested maps.
//
// # Operations
//
//   - [Store.Get] - point read of a collection, record, or nested path
//   - [Store.Push] - insert under a generated, time-ordered key
//   - [Store.Create] - insert a record at a chosen key, failing if it exists
//   - [Store.Set] - overwrite a record or a nested path
//   - [Store.Update] - multi-path update, atomic across records
//   - [Store.Remove] - soft delete of a record (TTL) or removal of a nested path
//   - [Store.QueryEqual] - equality query on a "<field>-index" GSI
//   - [Store.QueryLast] - last N by an ordered "<field>-index" GSI
//
// # Multi-path updates
//
// Update groups paths by record. A single record becomes one UpdateItem;
// several records become one TransactWriteItems call, so both sides of a
// mirrored relation ([Mirror]) change together or not at all.
//
// Nested writes require the record to exist and be live, and the maps along
// the path to exist; they fail with [ErrNotFound] otherwise.
//
// # Deletes
//
// Removing a record sets its "ttl" attribute. Reads treat such records as
// missing immediately; DynamoDB TTL purges them later, and the stream
// handler in package stream cleans up mirrors of deleted records.
//
// # Configuration
//
// Use [DefaultConfig] for a small forum (NumShards=1, single feed query).
// Increase NumShards to spread the ordered feed index across partitions:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//
// # Provisioning
//
// [CreateTables] creates the table of each [TableSpec] with its GSIs, enables
// TTL on "ttl" and, for streamed collections, a NEW_AND_OLD_IMAGES stream.
// Ordered indexes are keyed by the managed feed shard and the ordered field.
//
// # Errors
//
//   - [ErrNotFound] - nested write on a missing or deleted record
//   - [ErrAlreadyExists] - Create or Push found a live record at the key
//   - [ErrInvalidPath] - malformed path or unsupported path level
//   - [ErrInvalidValue] - record value is not a map or struct
//   - [ErrTooManyPaths] - update spans more records than one transaction holds
//   - [ErrOverlappingPaths] - update writes a path and one of its ancestors
package store
