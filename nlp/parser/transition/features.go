package transition

import (
	"fmt"
	"strconv"
	"strings"

	"tparse/util"
	"tparse/util/conf"
)

// SparseFeature is one extracted feature value: ids into an embedding
// vocabulary, with optional weights and human-readable descriptions.
type SparseFeature struct {
	ID          []uint64
	Weight      []float32
	Description []string
}

// Serialize returns a deterministic text encoding of the feature, the unit
// handed to the external scorer.
func (f *SparseFeature) Serialize() string {
	var b strings.Builder
	for i, id := range f.ID {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(id, 10))
	}
	if len(f.Weight) > 0 || len(f.Description) > 0 {
		b.WriteByte('|')
		for i, w := range f.Weight {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(float64(w), 'g', -1, 32))
		}
	}
	if len(f.Description) > 0 {
		b.WriteByte('|')
		b.WriteString(strings.Join(f.Description, ","))
	}
	return b.String()
}

type featureSource int

const (
	sourceInput featureSource = iota
	sourceStack
)

type featureAttribute int

const (
	attrWord featureAttribute = iota
	attrTag
	attrLabel
)

// FeatureTemplate is one parsed feature address, e.g. "stack(1).word":
// a token source with an offset and the token attribute to extract.
type FeatureTemplate struct {
	Source    featureSource
	Offset    int
	Attribute featureAttribute
	ConfStr   string
}

// ParseFeatureTemplate parses "input.word", "input(2).tag", "stack(1).label"
// style template strings.
func ParseFeatureTemplate(confStr string) (FeatureTemplate, error) {
	template := FeatureTemplate{ConfStr: confStr}
	dot := strings.LastIndex(confStr, ".")
	if dot < 0 {
		return template, fmt.Errorf("feature template %q: missing attribute", confStr)
	}
	source := confStr[:dot]
	if open := strings.Index(source, "("); open >= 0 {
		if !strings.HasSuffix(source, ")") {
			return template, fmt.Errorf("feature template %q: unbalanced offset", confStr)
		}
		offset, err := strconv.Atoi(source[open+1 : len(source)-1])
		if err != nil || offset < 0 {
			return template, fmt.Errorf("feature template %q: bad offset", confStr)
		}
		template.Offset = offset
		source = source[:open]
	}
	switch source {
	case "input":
		template.Source = sourceInput
	case "stack":
		template.Source = sourceStack
	default:
		return template, fmt.Errorf("feature template %q: unknown source %q", confStr, source)
	}
	switch confStr[dot+1:] {
	case "word":
		template.Attribute = attrWord
	case "tag":
		template.Attribute = attrTag
	case "label":
		template.Attribute = attrLabel
	default:
		return template, fmt.Errorf("feature template %q: unknown attribute %q", confStr, confStr[dot+1:])
	}
	return template, nil
}

// focus resolves the template's token index in state, -1 when the addressed
// position does not exist.
func (t *FeatureTemplate) focus(state *ParserState) int {
	switch t.Source {
	case sourceInput:
		return state.Input(t.Offset)
	default:
		return state.Stack(t.Offset)
	}
}

// Extractor maps (workspace, state) pairs to a fixed set of feature groups.
// Configuration is namespaced by an argument prefix so that several
// extractors (e.g. tagger and parser features) can share a task context:
//
//	<prefix>_features:        groups separated by ';', templates by spaces
//	<prefix>_embedding_names: one name per group, separated by ';'
//	<prefix>_embedding_dims:  one embedding width per group, separated by ';'
type Extractor struct {
	argPrefix  string
	addStrings bool

	groups [][]FeatureTemplate
	names  []string
	dims   []int

	wordMap, tagMap, labelMap    *util.TermFrequencyMap
	wordPath, tagPath, labelPath string
	store                        *util.SharedStore

	wordSlot, tagSlot int
}

func NewExtractor(argPrefix string) *Extractor {
	return &Extractor{argPrefix: argPrefix, wordSlot: -1, tagSlot: -1}
}

func (e *Extractor) param(name string) string {
	return e.argPrefix + "_" + name
}

// Setup parses the feature specification from the task context. All
// mismatches here are configuration errors and abort construction.
func (e *Extractor) Setup(ctx *conf.Context) error {
	spec := ctx.Get(e.param("features"), "")
	if spec == "" {
		return fmt.Errorf("missing required parameter %q", e.param("features"))
	}
	for _, groupStr := range strings.Split(spec, ";") {
		var group []FeatureTemplate
		for _, confStr := range strings.Fields(groupStr) {
			template, err := ParseFeatureTemplate(confStr)
			if err != nil {
				return err
			}
			group = append(group, template)
		}
		if len(group) == 0 {
			return fmt.Errorf("%s: empty feature group in %q", e.param("features"), spec)
		}
		e.groups = append(e.groups, group)
	}

	names := ctx.Get(e.param("embedding_names"), "")
	e.names = strings.Split(names, ";")
	if names == "" || len(e.names) != len(e.groups) {
		return fmt.Errorf("%s: need %d names, got %q", e.param("embedding_names"), len(e.groups), names)
	}

	dims := ctx.Get(e.param("embedding_dims"), "")
	for _, dimStr := range strings.Split(dims, ";") {
		dim, err := strconv.Atoi(strings.TrimSpace(dimStr))
		if err != nil || dim <= 0 {
			return fmt.Errorf("%s: bad dimension %q", e.param("embedding_dims"), dimStr)
		}
		e.dims = append(e.dims, dim)
	}
	if len(e.dims) != len(e.groups) {
		return fmt.Errorf("%s: need %d dimensions, got %d", e.param("embedding_dims"), len(e.groups), len(e.dims))
	}

	e.addStrings = ctx.Get(e.param("add_strings"), "false") == "true"
	return nil
}

// Init loads the term maps the configured templates require.
func (e *Extractor) Init(ctx *conf.Context, store *util.SharedStore) error {
	e.store = store
	load := func(input string) (*util.TermFrequencyMap, string, error) {
		path, err := ctx.InputFile(input)
		if err != nil {
			return nil, "", err
		}
		value, err := store.Get(path, func(p string) (interface{}, error) {
			return util.LoadTermFrequencyMap(p, 0, 0)
		})
		if err != nil {
			return nil, "", err
		}
		return value.(*util.TermFrequencyMap), path, nil
	}

	var err error
	if e.usesAttribute(attrWord) {
		if e.wordMap, e.wordPath, err = load("word-map"); err != nil {
			return err
		}
	}
	if e.usesAttribute(attrTag) {
		if e.tagMap, e.tagPath, err = load("tag-map"); err != nil {
			return err
		}
	}
	if e.usesAttribute(attrLabel) {
		if e.labelMap, e.labelPath, err = load("label-map"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) usesAttribute(attr featureAttribute) bool {
	for _, group := range e.groups {
		for _, template := range group {
			if template.Attribute == attr {
				return true
			}
		}
	}
	return false
}

// EmbeddingDims returns the per-group embedding widths, one per group.
func (e *Extractor) EmbeddingDims() []int {
	return e.dims
}

func (e *Extractor) EmbeddingNames() []string {
	return e.names
}

func (e *Extractor) NumGroups() int {
	return len(e.groups)
}

// FeatureSize returns the fixed number of feature slots in group.
func (e *Extractor) FeatureSize(group int) int {
	return len(e.groups[group])
}

// DomainSize returns the feature-id domain of group: the attribute
// vocabulary plus ids for unknown terms and out-of-range positions.
func (e *Extractor) DomainSize(group int) int {
	largest := 0
	for _, template := range e.groups[group] {
		if size := e.vocabularySize(template.Attribute); size > largest {
			largest = size
		}
	}
	return largest + 2
}

func (e *Extractor) vocabularySize(attr featureAttribute) int {
	switch attr {
	case attrWord:
		return e.wordMap.Size()
	case attrTag:
		return e.tagMap.Size()
	default:
		return e.labelMap.Size()
	}
}

// RequestWorkspaces declares the precomputed caches extraction will need.
// Called once at setup, after Init.
func (e *Extractor) RequestWorkspaces(registry *WorkspaceRegistry) {
	if e.wordMap != nil {
		e.wordSlot = registry.Request(e.argPrefix + "/word-ids")
	}
	if e.tagMap != nil {
		e.tagSlot = registry.Request(e.argPrefix + "/tag-ids")
	}
}

// Preprocess populates workspaces for a freshly created state: term map
// lookups done once per sentence instead of once per extraction.
func (e *Extractor) Preprocess(workspaces *WorkspaceSet, state *ParserState) {
	n := state.NumTokens()
	if e.wordMap != nil {
		words := NewVectorWorkspace(e.argPrefix+"/word-ids", n)
		unknown := e.wordMap.Size()
		for i := 0; i < n; i++ {
			words.Set(i, e.wordMap.LookupIndex(state.Sentence().Token(i).Word, unknown))
		}
		workspaces.Set(e.wordSlot, words)
	}
	if e.tagMap != nil {
		tags := NewVectorWorkspace(e.argPrefix+"/tag-ids", n)
		unknown := e.tagMap.Size()
		for i := 0; i < n; i++ {
			tags.Set(i, e.tagMap.LookupIndex(state.Sentence().Token(i).Tag, unknown))
		}
		workspaces.Set(e.tagSlot, tags)
	}
}

// ExtractSparseFeatures computes every feature group for state. The output
// is a pure function of the workspace and state content.
func (e *Extractor) ExtractSparseFeatures(workspaces *WorkspaceSet, state *ParserState) ([][]SparseFeature, error) {
	features := make([][]SparseFeature, len(e.groups))
	for g, group := range e.groups {
		features[g] = make([]SparseFeature, len(group))
		for k, template := range group {
			features[g][k] = e.extractOne(&template, workspaces, state)
		}
		if len(features[g]) != e.FeatureSize(g) {
			return nil, fmt.Errorf("feature group %d: extracted %d features, declared %d",
				g, len(features[g]), e.FeatureSize(g))
		}
	}
	return features, nil
}

func (e *Extractor) extractOne(template *FeatureTemplate, workspaces *WorkspaceSet, state *ParserState) SparseFeature {
	focus := template.focus(state)
	vocabulary := e.vocabularySize(template.Attribute)
	outside := vocabulary + 1
	var id int
	if focus < 0 {
		id = outside
	} else {
		switch template.Attribute {
		case attrWord:
			id = workspaces.Get(e.wordSlot).(*VectorWorkspace).Value(focus, outside)
		case attrTag:
			id = workspaces.Get(e.tagSlot).(*VectorWorkspace).Value(focus, outside)
		default:
			// "none" id for tokens with no attached label yet.
			if label := state.Label(focus); label >= 0 {
				id = label
			} else {
				id = vocabulary
			}
		}
	}
	feature := SparseFeature{ID: []uint64{uint64(id)}}
	if e.addStrings {
		feature.Description = []string{template.ConfStr + "=" + e.describe(template.Attribute, id, state, focus)}
	}
	return feature
}

func (e *Extractor) describe(attr featureAttribute, id int, state *ParserState, focus int) string {
	vocabulary := e.vocabularySize(attr)
	switch {
	case id == vocabulary+1:
		return "<OUTSIDE>"
	case id == vocabulary && attr == attrLabel:
		return "<NONE>"
	case id == vocabulary:
		return "<UNKNOWN>"
	}
	switch attr {
	case attrWord:
		return e.wordMap.GetTerm(id)
	case attrTag:
		return e.tagMap.GetTerm(id)
	default:
		return e.labelMap.GetTerm(id)
	}
}

// Release drops the extractor's term map references.
func (e *Extractor) Release() {
	if e.store == nil {
		return
	}
	if e.wordMap != nil {
		e.store.Release(e.wordPath)
		e.wordMap = nil
	}
	if e.tagMap != nil {
		e.store.Release(e.tagPath)
		e.tagMap = nil
	}
	if e.labelMap != nil {
		e.store.Release(e.labelPath)
		e.labelMap = nil
	}
	e.store = nil
}
