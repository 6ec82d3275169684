// Package xmltree converts XML documents into decoded JSON trees.
//
// The root element becomes the top-level object. Attributes and child
// elements become members keyed by local name, repeated children collapse
// into an array, and an element holding only text becomes a string. Text
// mixed with attributes or children is kept under "#text".
package xmltree

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
)

// TextKey holds character data of elements that also carry attributes or
// children.
const TextKey = "#text"

type element struct {
	members map[string]any
	order   []string
	text    strings.Builder
}

func newElement() *element {
	return &element{members: map[string]any{}}
}

func (e *element) add(name string, value any) {
	existing, ok := e.members[name]
	if !ok {
		e.members[name] = value
		e.order = append(e.order, name)
		return
	}
	if list, isList := existing.([]any); isList {
		e.members[name] = append(list, value)
		return
	}
	e.members[name] = []any{existing, value}
}

func (e *element) value() any {
	text := strings.TrimSpace(e.text.String())
	if len(e.members) == 0 {
		return text
	}
	if text != "" {
		e.members[TextKey] = text
	}
	return e.members
}

// Decode parses data and returns the root element as a tree.
func Decode(data []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var stack []*element
	var root any
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse XML")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := newElement()
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				el.add(attr.Name.Local, attr.Value)
			}
			stack = append(stack, el)
		case xml.EndElement:
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				root = el.value()
				continue
			}
			stack[len(stack)-1].add(t.Name.Local, el.value())
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("parse XML: no root element")
	}
	return root, nil
}
