package pipeline

// Config map accessors. Definitions come from YAML, so list values arrive as
// []any.

func configString(config map[string]any, key string) string {
	s, _ := config[key].(string)
	return s
}

func configStrings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func configInt(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
