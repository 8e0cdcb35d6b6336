package domain

// NotificationEvent is an inbound asynchronous gateway notification. Field
// order must be preserved exactly as received because the digest is computed
// over the concatenated values in arrival order; a plain map would lose it.
type NotificationEvent struct {
	Fields           []NotificationField `json:"fields"`
	ClaimedSignature string              `json:"claimed_signature"`
	SourceIP         string              `json:"source_ip"`
}

// NotificationField is one key/value pair of the raw notification body
type NotificationField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Get returns the value of the first field with the given key
func (e *NotificationEvent) Get(key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}
