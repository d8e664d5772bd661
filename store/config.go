package store

import "github.com/jacentio/cookhouse/internal/shard"

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to a collection name to form its table name.
	// Default: "cookhouse_"
	TablePrefix string

	// Tables overrides the table name of individual collections.
	Tables map[string]string

	// NumShards is the number of feed partitions per collection used by
	// ordered queries (QueryLast). Higher values spread write load across
	// partitions but require more parallel queries on read.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// MaxTransactItems bounds the number of records touched by one Update.
	// Default: 100 (the DynamoDB transaction limit)
	MaxTransactItems int
}

// DefaultConfig returns sensible defaults for a small forum.
func DefaultConfig() Config {
	return Config{
		TablePrefix:      "cookhouse_",
		NumShards:        1,
		MaxTransactItems: 100,
	}
}

// TableName returns the DynamoDB table backing a collection.
func (c Config) TableName(collection string) string {
	if name, ok := c.Tables[collection]; ok && name != "" {
		return name
	}
	return c.TablePrefix + collection
}

// IndexName returns the GSI used to query a collection by field.
func IndexName(field string) string {
	return field + "-index"
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" && len(c.Tables) == 0 {
		c.TablePrefix = "cookhouse_"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
	if c.MaxTransactItems < 1 || c.MaxTransactItems > 100 {
		c.MaxTransactItems = 100
	}
}
