package types

// Entry is one key/value record held by the store.
type Entry struct {
	Key   string `json:"key"`
	Value Scalar `json:"value"`
}

// Tombstone is the change event published when key is removed.
func Tombstone(key string) Entry {
	return Entry{Key: key, Value: None()}
}

func (e Entry) IsTombstone() bool {
	return e.Value.IsNone()
}
