package bimcloud

// Criterion is the manager's query document. Builders below compose the
// operator shapes the criterion endpoints accept.
type Criterion map[string]any

func Eq(field string, value any) Criterion {
	return Criterion{"$eq": map[string]any{field: value}}
}

func Gte(field string, value any) Criterion {
	return Criterion{"$gte": map[string]any{field: value}}
}

func And(criteria ...Criterion) Criterion {
	return Criterion{"$and": criteria}
}

func Or(criteria ...Criterion) Criterion {
	return Criterion{"$or": criteria}
}
