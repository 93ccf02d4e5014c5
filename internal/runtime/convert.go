package runtime

import (
	"fmt"

	"github.com/risor-io/risor/object"
)

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if n, err := toInt(v); err == nil {
		return n
	}
	return 0
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func toInt(obj object.Object) (int, error) {
	switch v := obj.(type) {
	case *object.Int:
		return int(v.Value()), nil
	case *object.Float:
		return int(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toBool(obj object.Object) (bool, error) {
	if b, ok := obj.(*object.Bool); ok {
		return b.Value(), nil
	}
	return false, fmt.Errorf("expected bool, got %s", obj.Type())
}

// toStringList accepts a list of strings, or a single string.
func toStringList(obj object.Object) ([]string, error) {
	if s, ok := obj.(*object.String); ok {
		return []string{s.Value()}, nil
	}
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("expected list of strings, got %s", obj.Type())
	}
	items := list.Value()
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := toString(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func stringList(values []string) *object.List {
	items := make([]object.Object, len(values))
	for i, v := range values {
		items[i] = object.NewString(v)
	}
	return object.NewList(items)
}
