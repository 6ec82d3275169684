package plan

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/apiproto"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/resolve"
)

// Loader reads plan documents and resolves their imports.
type Loader struct {
	// Resolver fetches referenced documents; nil reads local files and
	// plain URLs through resolve.Locations.
	Resolver resolve.Resolver
	// Plans resolves provider imports; nil rejects them.
	Plans Resolver
	// Transforms names the functions native-transform steps refer to; nil
	// uses NewTransformRegistry.
	Transforms *TransformRegistry
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Metrics
}

// NewLoader returns a loader using resolver for references and plans for
// provider imports.
func NewLoader(resolver resolve.Resolver, plans Resolver) *Loader {
	return &Loader{Resolver: resolver, Plans: plans, Transforms: NewTransformRegistry()}
}

type visitedSet map[string]struct{}

// Load parses a plan document and merges its imports. Relative references
// are resolved against base, a directory path or URL.
func (l *Loader) Load(ctx context.Context, data []byte, base string) (*Plan, error) {
	return requireContext(l.load(ctx, data, base, "", visitedSet{}))
}

// LoadFile loads the plan at path. The file itself counts as visited, so a
// plan importing itself is reported as a cycle.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Plan, error) {
	location, err := absLocation(path)
	if err != nil {
		return nil, err
	}
	data, err := l.resolver().Resolve(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", path)
	}
	visited := visitedSet{Import{Ref: location}.Key(): {}}
	return requireContext(l.load(ctx, data, resolve.Dir(location), location, visited))
}

// requireContext rejects a merged plan without a context. Imported plans may
// omit one as long as the importing plan ends up with a context.
func requireContext(p *Plan, err error) (*Plan, error) {
	if err != nil {
		return nil, err
	}
	if p.Context == nil {
		return nil, errors.Mark(errors.New("Missing context in lift plan"), errors.ErrMissingContext)
	}
	return p, nil
}

// LoadIDRules reads a rule file holding a list of rules, a single rule or a
// document with an idRules member.
func (l *Loader) LoadIDRules(ctx context.Context, path string) ([]IDRule, error) {
	location, err := absLocation(path)
	if err != nil {
		return nil, err
	}
	data, err := l.resolver().Resolve(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(err, "read identifier rules %s", path)
	}
	doc, err := decodeDocument(data, location)
	if err != nil {
		return nil, err
	}
	return l.parseIDRules(ctx, doc, resolve.Dir(location))
}

func (l *Loader) resolver() resolve.Resolver {
	if l.Resolver != nil {
		return l.Resolver
	}
	return &resolve.Locations{}
}

func (l *Loader) transforms() *TransformRegistry {
	if l.Transforms != nil {
		return l.Transforms
	}
	return NewTransformRegistry()
}

func absLocation(path string) (string, error) {
	if resolve.IsAbsoluteRef(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve plan path %s", path)
	}
	return abs, nil
}

func (l *Loader) load(ctx context.Context, data []byte, base, location string, visited visitedSet) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := decodeDocument(data, location)
	if err != nil {
		return nil, err
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		if raw != nil {
			return nil, errors.Configuration("plan document must be a mapping, got %T", raw)
		}
		doc = map[string]any{}
	}

	local, err := l.parse(ctx, doc, base)
	if err != nil {
		if location != "" {
			return nil, errors.Wrapf(err, "plan %s", location)
		}
		return nil, err
	}
	if err := l.resolveImports(ctx, local, visited); err != nil {
		return nil, err
	}
	return local, nil
}

// resolveImports loads every import of p depth first and merges them into p.
func (l *Loader) resolveImports(ctx context.Context, p *Plan, visited visitedSet) error {
	if p.merged || len(p.Imports) == 0 {
		p.merged = true
		return nil
	}
	imported := make([]*Plan, 0, len(p.Imports))
	for _, imp := range p.Imports {
		resolved, err := l.importPlan(ctx, imp, visited)
		if err != nil {
			return err
		}
		imported = append(imported, resolved)
	}
	if err := mergeInto(p, imported); err != nil {
		return err
	}
	p.merged = true
	return nil
}

func (l *Loader) importPlan(ctx context.Context, imp Import, visited visitedSet) (*Plan, error) {
	key := imp.Key()
	if _, seen := visited[key]; seen {
		return nil, errors.Mark(errors.Newf("Import cycle detected: %s", key), errors.ErrImportCycle)
	}
	visited[key] = struct{}{}
	log := logger.Or(l.Logger)

	if imp.Ref != "" {
		data, err := l.resolver().Resolve(ctx, imp.Ref)
		if err != nil {
			return nil, errors.Wrapf(err, "import %s", imp.Ref)
		}
		l.Metrics.RecordPlanImport(imp.Kind())
		log.Debugw("resolved plan import", "ref", imp.Ref)
		return l.load(ctx, data, resolve.Dir(imp.Ref), imp.Ref, visited)
	}

	if l.Plans == nil {
		return nil, errors.Configuration("Plan import requires resolver for provider %s", imp.Provider)
	}
	resolved, err := l.Plans.Resolve(ctx, imp.Provider, imp.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s:%s", imp.Provider, imp.ID)
	}
	l.Metrics.RecordPlanImport(imp.Kind())
	log.Debugw("resolved plan import", "provider", imp.Provider, "id", imp.ID, "profile", imp.Profile)

	// Provider plans are shared values; merge into a copy.
	copied := *resolved
	if err := l.resolveImports(ctx, &copied, visited); err != nil {
		return nil, err
	}
	return &copied, nil
}

// decodeDocument parses YAML, JSON with comments or TOML. The location's
// extension selects the syntax; without one the content is sniffed.
func decodeDocument(data []byte, location string) (any, error) {
	switch strings.ToLower(filepath.Ext(stripQuery(location))) {
	case ".toml":
		return decodeTOML(data)
	case ".json", ".jsonc", ".jsonld":
		return decodeJSONC(data)
	case ".yaml", ".yml":
		return decodeYAML(data)
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return decodeJSONC(trimmed)
	}
	doc, yamlErr := decodeYAML(trimmed)
	if yamlErr == nil {
		return doc, nil
	}
	if doc, err := decodeTOML(trimmed); err == nil {
		return doc, nil
	}
	return nil, yamlErr
}

func stripQuery(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}

func decodeYAML(data []byte) (any, error) {
	doc, err := jsonptr.DecodeYAML(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse plan"), errors.ErrConfiguration)
	}
	return doc, nil
}

func decodeJSONC(data []byte) (any, error) {
	doc, err := jsonptr.Decode(jsonc.ToJSON(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse plan"), errors.ErrConfiguration)
	}
	return doc, nil
}

func decodeTOML(data []byte) (any, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse TOML plan"), errors.ErrConfiguration)
	}
	encoded, err := jsonptr.Encode(doc)
	if err != nil {
		return nil, err
	}
	return jsonptr.Decode(encoded)
}

// parse reads the local parts of a plan document. Every structural problem
// is reported before any referenced document is fetched.
func (l *Loader) parse(ctx context.Context, doc map[string]any, base string) (*Plan, error) {
	imports, err := parseImports(doc["imports"], base)
	if err != nil {
		return nil, err
	}
	metadata := parseMetadata(doc["metadata"])
	contextSpec, contextRulesRaw, err := parseContext(doc["context"], base)
	if err != nil {
		return nil, err
	}
	input, err := parseInput(doc["input"], base)
	if err != nil {
		return nil, err
	}
	decls, err := parseStepDecls(doc["additionalSteps"])
	if err != nil {
		return nil, err
	}

	pre, post, err := l.materializeSteps(ctx, decls, base)
	if err != nil {
		return nil, err
	}
	contextRules, err := l.parseIDRules(ctx, contextRulesRaw, base)
	if err != nil {
		return nil, err
	}
	planRules, err := l.parseIDRules(ctx, doc["idRules"], base)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Context:  contextSpec,
		Pre:      pre,
		Post:     post,
		IDRules:  append(contextRules, planRules...),
		Input:    input,
		Imports:  imports,
		Metadata: metadata,
	}, nil
}

func parseContext(raw any, base string) (ContextSpec, any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil, nil
	case string:
		return RefContext{URI: resolve.Join(base, v)}, nil, nil
	case map[string]any:
		rules := v["idRules"]
		if ref, ok := v["ref"].(string); ok && ref != "" {
			return RefContext{URI: resolve.Join(base, ref)}, rules, nil
		}
		inline, ok := v["inline"]
		if !ok || inline == nil {
			inline, ok = v["json"]
		}
		if ok && inline != nil {
			data, err := inlineJSON(inline)
			if err != nil {
				return nil, nil, err
			}
			return InlineContext{JSON: data}, rules, nil
		}
		return nil, nil, errors.Configuration("Context must define ref or inline JSON")
	default:
		return nil, nil, errors.Configuration("context must be a mapping, got %T", raw)
	}
}

// inlineJSON encodes an inline value. A string holding JSON text is taken
// verbatim.
func inlineJSON(value any) ([]byte, error) {
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if _, err := jsonptr.Decode([]byte(trimmed)); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "inline context"), errors.ErrConfiguration)
		}
		return []byte(trimmed), nil
	}
	return jsonptr.Encode(value)
}

type stepDecl struct {
	kind   string
	name   string
	code   string
	ref    string
	strict bool
}

func parseStepDecls(raw any) ([]stepDecl, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.Configuration("additionalSteps must be a list")
	}
	decls := make([]stepDecl, 0, len(items))
	for i, item := range items {
		step, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Configuration("additionalSteps[%d] must be a mapping", i)
		}
		decl := stepDecl{
			kind:   strings.ToLower(stringValue(step["type"])),
			name:   stringValue(step["name"]),
			code:   stringValue(step["code"]),
			ref:    stringValue(step["ref"]),
			strict: true,
		}
		if decl.kind == "" {
			return nil, errors.Configuration("Step missing type")
		}
		switch decl.kind {
		case "jq", "json-schema", "shacl", "sparql-construct", "sparql-update":
			if decl.code == "" && decl.ref == "" {
				return nil, errors.Configuration("Step requires code or ref")
			}
		case "native-transform", "native":
			if decl.ref == "" {
				return nil, errors.Configuration("native-transform step requires ref naming a registered transform")
			}
		default:
			return nil, errors.Configuration("Unsupported step type: %s", decl.kind)
		}
		if v, ok := step["strict"]; ok {
			decl.strict = boolValue(v)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func (l *Loader) materializeSteps(ctx context.Context, decls []stepDecl, base string) ([]PreStep, []PostStep, error) {
	var pre []PreStep
	var post []PostStep
	for _, decl := range decls {
		if decl.kind == "native-transform" || decl.kind == "native" {
			fn, ok := l.transforms().Lookup(decl.ref)
			if !ok {
				return nil, nil, errors.Configuration("unknown native transform: %s", decl.ref)
			}
			pre = append(pre, NativeTransform{Name: decl.name, Transform: fn})
			continue
		}

		body, err := l.stepBody(ctx, decl, base)
		if err != nil {
			return nil, nil, err
		}
		switch decl.kind {
		case "jq":
			pre = append(pre, ExternalFilter{Program: string(body)})
		case "json-schema":
			pre = append(pre, JSONSchema{Schema: body, Strict: decl.strict})
		case "shacl":
			post = append(post, Shacl{Shapes: body})
		case "sparql-construct":
			post = append(post, SparqlConstruct{Query: string(body)})
		case "sparql-update":
			post = append(post, SparqlUpdate{Update: string(body)})
		}
	}
	return pre, post, nil
}

func (l *Loader) stepBody(ctx context.Context, decl stepDecl, base string) ([]byte, error) {
	if decl.code != "" {
		return []byte(decl.code), nil
	}
	location := resolve.Join(base, decl.ref)
	data, err := l.resolver().Resolve(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(err, "%s step", decl.kind)
	}
	return data, nil
}

func (l *Loader) parseIDRules(ctx context.Context, raw any, base string) ([]IDRule, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		rules := make([]IDRule, 0, len(v))
		for _, item := range v {
			rule, err := parseIDRule(item)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		return rules, nil
	case map[string]any:
		if ref := stringValue(v["ref"]); ref != "" {
			location := resolve.Join(base, ref)
			data, err := l.resolver().Resolve(ctx, location)
			if err != nil {
				return nil, errors.Wrapf(err, "idRules %s", ref)
			}
			doc, err := decodeDocument(data, location)
			if err != nil {
				return nil, err
			}
			return l.parseIDRules(ctx, doc, resolve.Dir(location))
		}
		if inline, ok := v["inline"]; ok && inline != nil {
			return l.parseIDRules(ctx, inline, base)
		}
		if inline, ok := v["json"]; ok && inline != nil {
			return l.parseIDRules(ctx, inline, base)
		}
		if nested, ok := v["idRules"]; ok {
			return l.parseIDRules(ctx, nested, base)
		}
		rule, err := parseIDRule(v)
		if err != nil {
			return nil, err
		}
		return []IDRule{rule}, nil
	default:
		return nil, errors.Configuration("idRules must be a list or a mapping, got %T", raw)
	}
}

func parseIDRule(raw any) (IDRule, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return IDRule{}, errors.Configuration("identifier rule must be a mapping, got %T", raw)
	}
	rule := IDRule{
		Path:     stringValue(m["path"]),
		Template: stringValue(m["template"]),
		Scope:    stringValue(m["scope"]),
		Strict:   boolValue(m["strict"]),
	}
	if rule.Path == "" || rule.Template == "" {
		return IDRule{}, errors.Configuration("identifier rule requires path and template")
	}
	return rule, nil
}

func parseInput(raw any, base string) (*InputSpec, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Configuration("Input must be a map")
	}
	kind := strings.ToLower(stringValue(m["type"]))
	if kind == "" {
		return nil, errors.Configuration("Input requires type")
	}
	if kind != "api" {
		return nil, errors.Configuration("Unsupported input type: %s", kind)
	}
	protocol := stringValue(m["protocol"])
	if protocol == "" {
		return nil, errors.Configuration("API input requires protocol")
	}
	cfgRaw, _ := m["config"].(map[string]any)
	cfg, err := apiproto.ParseConfig(protocol, cfgRaw, base)
	if err != nil {
		return nil, err
	}
	return &InputSpec{Protocol: protocol, Config: cfg}, nil
}

func parseImports(raw any, base string) ([]Import, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.Configuration("imports must be a list")
	}
	imports := make([]Import, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Configuration("import must be a mapping, got %T", item)
		}
		imp := Import{
			Ref:      stringValue(m["ref"]),
			Provider: stringValue(m["provider"]),
			ID:       stringValue(m["id"]),
			Profile:  stringValue(m["profile"]),
		}
		if imp.Ref == "" && (imp.Provider == "" || imp.ID == "") {
			return nil, errors.Configuration("Import requires ref or provider+id")
		}
		if imp.Ref != "" {
			imp.Ref = resolve.Join(base, imp.Ref)
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

func parseMetadata(raw any) *Metadata {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return &Metadata{
		Title:       stringValue(m["title"]),
		Description: stringValue(m["description"]),
		Author:      stringValue(m["author"]),
		Date:        stringValue(m["date"]),
		Version:     stringValue(m["version"]),
		License:     stringValue(m["license"]),
		Keywords:    stringList(m["keywords"]),
		Schema:      stringValue(m["schema"]),
		Profile:     stringValue(m["profile"]),
		ProfilesOf:  stringList(m["profilesOf"]),
	}
}

func stringValue(v any) string {
	text, _ := jsonptr.Text(v)
	return text
}

func boolValue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := jsonptr.Text(item); ok {
			out = append(out, text)
		}
	}
	return out
}
