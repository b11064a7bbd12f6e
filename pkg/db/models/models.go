package models

// All lists every record kind the local store persists, in migration order.
func All() []any {
	return []any{
		&CartLine{},
		&ImageMetadata{},
	}
}
