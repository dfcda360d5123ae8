package dynamo

// Config holds configuration for the Adapter.
type Config struct {
	// TableName is the DynamoDB table holding user, session and key records.
	// Default: "lucia_auth"
	TableName string

	// IndexName is the global secondary index grouping session and key
	// records by owning user. The index must be keyed on GSI1PK (hash)
	// and GSI1SK (range) and project the record attributes.
	// Default: "GSI1"
	IndexName string
}

// DefaultConfig returns the table layout most deployments use.
func DefaultConfig() Config {
	return Config{
		TableName: "lucia_auth",
		IndexName: "GSI1",
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "lucia_auth"
	}
	if c.IndexName == "" {
		c.IndexName = "GSI1"
	}
}
