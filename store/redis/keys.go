package redis

// Redis key naming conventions for cascade data.
// All keys are prefixed with "cascade:" to avoid collisions.

const keyPrefix = "cascade:"

// execKey returns the key for an execution entity: cascade:exec:{id}
func execKey(id string) string { return keyPrefix + "exec:" + id }

// execIDsKey is the Set tracking all execution IDs for enumeration.
const execIDsKey = keyPrefix + "exec_ids"
