package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// contextPrimitive reads and writes state by path. The document-level type
// "memory" is a legacy alias decoded to the same primitive.
type contextPrimitive struct {
	base
}

// Execute implements primitive.
func (p *contextPrimitive) Execute(_ context.Context, node *Node) (any, error) {
	data := node.Data.(*ContextData)
	switch strings.ToLower(data.Operation) {
	case "set":
		// Deterministic write order keeps the mutation log stable.
		paths := make([]string, 0, len(data.Data))
		for path := range data.Data {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			p.setByPath(path, p.resolve(data.Data[path]))
		}
		return map[string]any{"success": true, "keys": len(paths)}, nil
	case "get":
		value := p.d.state.Get(strings.TrimPrefix(data.Path, "state."))
		p.d.state.Set("lastGet", value)
		return value, nil
	case "delete":
		removed := p.d.state.Delete(strings.TrimPrefix(data.Path, "state."))
		return map[string]any{"success": true, "removed": removed}, nil
	default:
		return nil, newError(ErrUnknownAction, node.Name, fmt.Sprintf("context operation %q", data.Operation), nil)
	}
}
