package catalog

import "fmt"

// Source kinds accepted by NewSource
const (
	SourceFile  = "file"
	SourceRedis = "redis"
	SourceDemo  = "demo"
)

// NewSource selects the catalog source named by kind. The store is only
// needed for the redis kind.
func NewSource(kind, path string, store *RedisStore) (Source, error) {
	switch kind {
	case SourceDemo, "":
		return DemoSource{}, nil
	case SourceFile:
		if path == "" {
			return nil, fmt.Errorf("catalog file path is required")
		}
		return FileSource{Path: path}, nil
	case SourceRedis:
		if store == nil {
			return nil, fmt.Errorf("redis catalog store is required")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", kind)
	}
}
