// Package jsonptr addresses and rewrites decoded JSON trees with slash
// delimited pointers.
//
// A tree is the value produced by Decode: map[string]any, []any,
// json.Number, string, bool or nil. Set and Remove never mutate their input;
// they copy the containers along the pointer path and share everything else.
//
// Pointers follow RFC 6901 escaping ("~1" is "/", "~0" is "~"). The empty
// pointer and "/" both address the whole document. Any other empty token
// names the "" member: "//a" is member "a" of member "".
package jsonptr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geoknoesis/semlift-go/errors"
)

// Parse splits a pointer into unescaped reference tokens.
func Parse(pointer string) []string {
	if strings.TrimSpace(pointer) == "" || pointer == "/" {
		return nil
	}
	raw := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	tokens := make([]string, len(raw))
	for i, token := range raw {
		token = strings.ReplaceAll(token, "~1", "/")
		tokens[i] = strings.ReplaceAll(token, "~0", "~")
	}
	return tokens
}

// Escape encodes a single reference token.
func Escape(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// Join builds a pointer from unescaped tokens.
func Join(tokens ...string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range tokens {
		b.WriteByte('/')
		b.WriteString(Escape(token))
	}
	return b.String()
}

// Get returns the value addressed by pointer and whether it exists.
func Get(doc any, pointer string) (any, bool) {
	current := doc
	for _, token := range Parse(pointer) {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, ok := arrayIndex(token)
			if !ok || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set returns a new tree with value written at pointer. Missing objects along
// the path are created; a numeric token under a missing or scalar parent
// creates an array, and arrays are padded with nulls up to the index. A
// non-numeric token addressing an existing array leaves the tree unchanged.
func Set(doc any, pointer string, value any) any {
	tokens := Parse(pointer)
	if len(tokens) == 0 {
		return value
	}
	return set(doc, tokens, value)
}

func set(node any, tokens []string, value any) any {
	head, tail := tokens[0], tokens[1:]
	child := func(existing any) any {
		if len(tail) == 0 {
			return value
		}
		return set(existing, tail, value)
	}

	switch current := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(current)+1)
		for k, v := range current {
			out[k] = v
		}
		existing, ok := current[head]
		if !ok {
			existing = map[string]any{}
		}
		out[head] = child(existing)
		return out
	case []any:
		index, ok := arrayIndex(head)
		if !ok {
			return current
		}
		size := len(current)
		if index >= size {
			size = index + 1
		}
		out := make([]any, size)
		copy(out, current)
		out[index] = child(out[index])
		return out
	default:
		if index, ok := arrayIndex(head); ok {
			out := make([]any, index+1)
			out[index] = child(nil)
			return out
		}
		return map[string]any{head: child(map[string]any{})}
	}
}

// Remove returns a new tree without the value at pointer. Removing a missing
// path returns the tree unchanged; removing the root yields nil.
func Remove(doc any, pointer string) any {
	tokens := Parse(pointer)
	if len(tokens) == 0 {
		return nil
	}
	out, _ := remove(doc, tokens)
	return out
}

func remove(node any, tokens []string) (any, bool) {
	head, tail := tokens[0], tokens[1:]
	switch current := node.(type) {
	case map[string]any:
		existing, ok := current[head]
		if !ok {
			return current, false
		}
		out := make(map[string]any, len(current))
		for k, v := range current {
			out[k] = v
		}
		if len(tail) == 0 {
			delete(out, head)
			return out, true
		}
		updated, changed := remove(existing, tail)
		if !changed {
			return current, false
		}
		out[head] = updated
		return out, true
	case []any:
		index, ok := arrayIndex(head)
		if !ok || index >= len(current) {
			return current, false
		}
		if len(tail) == 0 {
			out := make([]any, 0, len(current)-1)
			out = append(out, current[:index]...)
			return append(out, current[index+1:]...), true
		}
		updated, changed := remove(current[index], tail)
		if !changed {
			return current, false
		}
		out := make([]any, len(current))
		copy(out, current)
		out[index] = updated
		return out, true
	default:
		return node, false
	}
}

func arrayIndex(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	index, err := strconv.Atoi(token)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// Decode parses JSON bytes into a tree, keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode JSON document")
	}
	if dec.More() {
		return nil, errors.New("decode JSON document: trailing data after top-level value")
	}
	return doc, nil
}

// Encode serializes a tree without HTML escaping.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encode JSON document")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Text renders a scalar the way identifier templates expect: strings verbatim,
// numbers and booleans by their JSON text, containers as compact JSON. Null
// reports false.
func Text(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		data, err := Encode(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

// DecodeYAML parses a YAML document into a tree with the same shape Decode
// produces. Non-string mapping keys are rendered as strings.
func DecodeYAML(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode YAML document")
	}
	converted, err := Encode(stringKeys(doc))
	if err != nil {
		return nil, err
	}
	return Decode(converted)
}

func stringKeys(node any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = stringKeys(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = stringKeys(v)
		}
		return out
	default:
		return node
	}
}
