package plan

import (
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
)

// mergeInto folds imported plans into p. Imported steps and rules come
// first, in import order; p's own input and metadata win over imported ones.
func mergeInto(p *Plan, imported []*Plan) error {
	contexts := make([]ContextSpec, 0, len(imported)+1)
	var pre []PreStep
	var post []PostStep
	var rules []IDRule
	metadata := make([]*Metadata, 0, len(imported))
	for _, ip := range imported {
		if ip.Context != nil {
			contexts = append(contexts, ip.Context)
		}
		pre = append(pre, ip.Pre...)
		post = append(post, ip.Post...)
		rules = append(rules, ip.IDRules...)
		if p.Input == nil && ip.Input != nil {
			p.Input = ip.Input
		}
		if ip.Metadata != nil {
			metadata = append(metadata, ip.Metadata)
		}
	}
	if p.Context != nil {
		contexts = append(contexts, p.Context)
	}

	if len(contexts) > 0 {
		merged, err := mergeContexts(contexts)
		if err != nil {
			return err
		}
		p.Context = merged
	}
	p.Pre = append(pre, p.Pre...)
	p.Post = append(post, p.Post...)
	p.IDRules = append(rules, p.IDRules...)
	p.Metadata = mergeMetadata(metadata, p.Metadata)
	return nil
}

// mergeContexts combines contexts into one inline {"@context": [...]}
// document. A reference contributes its URI, an inline document its
// "@context" member or the whole value. Nested arrays are flattened.
func mergeContexts(contexts []ContextSpec) (ContextSpec, error) {
	elements := make([]any, 0, len(contexts))
	for _, c := range contexts {
		switch v := c.(type) {
		case RefContext:
			elements = append(elements, v.URI)
		case InlineContext:
			doc, err := jsonptr.Decode(v.JSON)
			if err != nil {
				return nil, errors.Mark(errors.Wrap(err, "inline context"), errors.ErrConfiguration)
			}
			if obj, ok := doc.(map[string]any); ok {
				if inner, ok := obj["@context"]; ok {
					doc = inner
				}
			}
			if list, ok := doc.([]any); ok {
				elements = append(elements, list...)
			} else {
				elements = append(elements, doc)
			}
		}
	}
	data, err := jsonptr.Encode(map[string]any{"@context": elements})
	if err != nil {
		return nil, err
	}
	return InlineContext{JSON: data}, nil
}

// mergeMetadata keeps local scalar fields and falls back to the first
// imported plan's. A non-empty local list replaces the imported ones;
// otherwise the distinct union of the imported lists is used.
func mergeMetadata(imported []*Metadata, local *Metadata) *Metadata {
	if local == nil && len(imported) == 0 {
		return nil
	}
	if local == nil {
		local = &Metadata{}
	}
	var first Metadata
	if len(imported) > 0 {
		first = *imported[0]
	}
	pick := func(own, fallback string) string {
		if own != "" {
			return own
		}
		return fallback
	}
	union := func(own []string, field func(*Metadata) []string) []string {
		if len(own) > 0 {
			return own
		}
		var out []string
		seen := map[string]bool{}
		for _, m := range imported {
			for _, v := range field(m) {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
		return out
	}
	return &Metadata{
		Title:       pick(local.Title, first.Title),
		Description: pick(local.Description, first.Description),
		Author:      pick(local.Author, first.Author),
		Date:        pick(local.Date, first.Date),
		Version:     pick(local.Version, first.Version),
		License:     pick(local.License, first.License),
		Keywords:    union(local.Keywords, func(m *Metadata) []string { return m.Keywords }),
		Schema:      pick(local.Schema, first.Schema),
		Profile:     pick(local.Profile, first.Profile),
		ProfilesOf:  union(local.ProfilesOf, func(m *Metadata) []string { return m.ProfilesOf }),
	}
}
