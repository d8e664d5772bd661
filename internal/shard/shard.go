// Package shard provides shard key generation for the ordered feed indexes.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the upper bound on feed shards per collection.
const MaxShards = 256

// FeedPK computes the feed partition key for a record.
// With numShards=1, every record of a collection goes to shard "00".
// With numShards>1, records are distributed across shards based on the record key hash.
func FeedPK(collection, key string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#00", collection)
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", collection, shard)
}

// FeedPKs lists every feed partition key of a collection, in shard order.
// Readers fan out over this list.
func FeedPKs(collection string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	pks := make([]string, numShards)
	for i := range pks {
		pks[i] = fmt.Sprintf("%s#%02x", collection, i)
	}
	return pks
}
