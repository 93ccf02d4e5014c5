package store

import (
	"encoding/json"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalStack converts a plan stack to JSON text for storage.
func marshalStack(stack []string) string {
	if len(stack) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(stack)
	return string(b)
}

// unmarshalStack converts JSON text back to a plan stack.
func unmarshalStack(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var stack []string
	_ = json.Unmarshal([]byte(s), &stack)
	if len(stack) == 0 {
		return nil
	}
	return stack
}
