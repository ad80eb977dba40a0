package agent

// Parameter descriptions are plain JSON-schema objects so they can be handed
// to any function-calling model as-is.

func object(required []string, properties map[string]any) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enumParam(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func integerParam(description string, minimum int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "minimum": minimum}
}

func stringsParam(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

func filtersParam() map[string]any {
	return map[string]any{
		"type": "object",
		"description": "Column filters. A plain value means equality; an object maps operators " +
			"(gte, lte, gt, lt, eq, contains) to values, e.g. {\"value\": {\"gte\": 10}}",
	}
}

var sourceParam = stringParam("Name of the data source")
