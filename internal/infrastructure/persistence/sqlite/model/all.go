package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&Incident{},
		&Diagnostic{},
		&PartsRequest{},
		&ChangeRequest{},
		&RecurrenceVerification{},
		&Photo{},
		&ChangeLog{},
		&CacheEntry{},
	}
}
