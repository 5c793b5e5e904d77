package tokenizer

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

// Per-tokenizer word cache bounds.
const (
	wordCacheSize = 8192
	maxCachedWord = 64
)

// gpt2Pattern is the pre-tokenizer regex a ByteLevel pre-tokenizer applies
// when use_regex is set.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// vocabJSON mirrors the subset of tokenizer.json the BPE engine reads.
type vocabJSON struct {
	AddedTokens   []addedToken `json:"added_tokens"`
	Normalizer    *component   `json:"normalizer"`
	PreTokenizer  *component   `json:"pre_tokenizer"`
	PostProcessor *component   `json:"post_processor"`
	Model         modelJSON    `json:"model"`
}

type addedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

type modelJSON struct {
	Type         string          `json:"type"`
	Vocab        map[string]int  `json:"vocab"`
	Merges       json.RawMessage `json:"merges"`
	ByteFallback bool            `json:"byte_fallback"`
	FuseUnk      bool            `json:"fuse_unk"`
	IgnoreMerges bool            `json:"ignore_merges"`
}

// component is any normalizer, pre-tokenizer or post-processor node.
type component struct {
	Type string `json:"type"`

	Normalizers   []component `json:"normalizers"`
	Pretokenizers []component `json:"pretokenizers"`
	Processors    []component `json:"processors"`

	Prepend        string   `json:"prepend"`
	Pattern        *pattern `json:"pattern"`
	Content        string   `json:"content"`
	Replacement    string   `json:"replacement"`
	PrependScheme  string   `json:"prepend_scheme"`
	Split          *bool    `json:"split"`
	AddPrefixSpace *bool    `json:"add_prefix_space"`
	UseRegex       *bool    `json:"use_regex"`
	Behavior       string   `json:"behavior"`
	Invert         bool     `json:"invert"`
	Individual     bool     `json:"individual_digits"`
	StripLeft      bool     `json:"strip_left"`
	StripRight     bool     `json:"strip_right"`

	Single        []templatePiece         `json:"single"`
	SpecialTokens map[string]specialToken `json:"special_tokens"`
}

type pattern struct {
	String *string `json:"String"`
	Regex  *string `json:"Regex"`
}

type templatePiece struct {
	SpecialToken *struct {
		ID string `json:"id"`
	} `json:"SpecialToken"`
}

type specialToken struct {
	IDs []int `json:"ids"`
}

type normalizeFunc func(string) string

type preTokenizeFunc func(pieces []string) []string

// bpeTokenizer counts tokens for a BPE tokenizer.json without cgo.
type bpeTokenizer struct {
	model        string
	vocab        map[string]int
	ranks        map[[2]string]int
	byteLevel    bool
	byteFallback bool
	fuseUnk      bool
	ignoreMerges bool
	normalize    []normalizeFunc
	pre          []preTokenizeFunc
	added        *regexp2.Regexp
	postSpecials int
	cache        *lru.Cache[string, int]
}

// newBPETokenizer parses a tokenizer.json document.
func newBPETokenizer(model string, data []byte) (Tokenizer, error) {
	var doc vocabJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errValidation(model, fmt.Errorf("parse tokenizer.json: %w", err))
	}
	if doc.Model.Type != "" && doc.Model.Type != "BPE" {
		return nil, errValidation(model, fmt.Errorf("unsupported tokenizer model %q", doc.Model.Type))
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, errValidation(model, fmt.Errorf("empty vocabulary"))
	}
	ranks, err := parseMerges(doc.Model.Merges)
	if err != nil {
		return nil, errValidation(model, err)
	}
	t := &bpeTokenizer{
		model:        model,
		vocab:        doc.Model.Vocab,
		ranks:        ranks,
		byteFallback: doc.Model.ByteFallback,
		fuseUnk:      doc.Model.FuseUnk,
		ignoreMerges: doc.Model.IgnoreMerges,
	}
	if t.cache, err = lru.New[string, int](wordCacheSize); err != nil {
		return nil, errValidation(model, err)
	}
	if doc.Normalizer != nil {
		if t.normalize, err = buildNormalizers(*doc.Normalizer); err != nil {
			return nil, errValidation(model, err)
		}
	}
	if doc.PreTokenizer != nil {
		if t.pre, err = t.buildPreTokenizers(*doc.PreTokenizer); err != nil {
			return nil, errValidation(model, err)
		}
	}
	if doc.PostProcessor != nil {
		t.postSpecials = doc.PostProcessor.specialCount()
	}
	if t.added, err = addedTokenPattern(doc.AddedTokens); err != nil {
		return nil, errValidation(model, err)
	}
	return t, nil
}

func (t *bpeTokenizer) Model() string  { return t.model }
func (t *bpeTokenizer) Family() Family { return FamilyB }

func (t *bpeTokenizer) CountTokens(text string) Result {
	n := t.postSpecials
	for _, seg := range splitAdded(t.added, text) {
		if seg.added {
			n++
			continue
		}
		s := seg.text
		for _, f := range t.normalize {
			s = f(s)
		}
		pieces := []string{s}
		for _, f := range t.pre {
			pieces = f(pieces)
		}
		for _, p := range pieces {
			if t.byteLevel {
				p = byteLevelEncode(p)
			}
			n += t.countWord(p)
		}
	}
	return Result{TokenCount: n, Model: t.model, Tokenizer: FamilyB}
}

// countWord merges symbols by rank until none applies and counts the result.
// Short words are served from the per-tokenizer cache.
func (t *bpeTokenizer) countWord(word string) int {
	if word == "" {
		return 0
	}
	if t.ignoreMerges {
		if _, ok := t.vocab[word]; ok {
			return 1
		}
	}
	cacheable := t.cache != nil && len(word) <= maxCachedWord
	if cacheable {
		if n, ok := t.cache.Get(word); ok {
			return n
		}
	}
	n := t.countSymbols(word, t.mergeWord(word))
	if cacheable {
		t.cache.Add(strings.Clone(word), n)
	}
	return n
}

// countSymbols counts the live symbols of syms, expanding out-of-vocabulary
// ones to bytes under byte fallback and fusing unknown runs under fuse_unk.
func (t *bpeTokenizer) countSymbols(word string, syms []symbol) int {
	n := 0
	prevUnk := false
	for i := 0; i >= 0 && i < len(syms); i = syms[i].next {
		piece := word[syms[i].start:syms[i].end]
		if _, ok := t.vocab[piece]; ok || t.byteLevel {
			n++
			prevUnk = false
			continue
		}
		switch {
		case t.byteFallback:
			n += len(piece) // one <0xXX> token per byte
		case t.fuseUnk && prevUnk:
		default:
			n++
		}
		prevUnk = true
	}
	return n
}

// symbol is a byte range of the word being merged, linked to its live
// neighbours. A merged-away symbol has end == -1.
type symbol struct {
	start, end int
	prev, next int
}

// mergeCand proposes merging the symbol at pos (ending at mid) with its right
// neighbour (ending at end).
type mergeCand struct {
	rank, pos, mid, end int
}

type mergeQueue []mergeCand

func (q mergeQueue) Len() int { return len(q) }
func (q mergeQueue) Less(i, j int) bool {
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].pos < q[j].pos
}
func (q mergeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *mergeQueue) Push(x any)   { *q = append(*q, x.(mergeCand)) }
func (q *mergeQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}

// mergeWord splits word into runes and applies merges lowest rank first,
// leftmost first among equal ranks. Stale candidates are skipped on pop, so
// the whole word costs O(n log n).
func (t *bpeTokenizer) mergeWord(word string) []symbol {
	syms := make([]symbol, 0, utf8.RuneCountInString(word))
	for i := range word {
		if len(syms) > 0 {
			syms[len(syms)-1].end = i
		}
		syms = append(syms, symbol{start: i, prev: len(syms) - 1, next: len(syms) + 1})
	}
	syms[len(syms)-1].end = len(word)
	syms[len(syms)-1].next = -1
	if len(syms) == 1 || len(t.ranks) == 0 {
		return syms
	}

	q := make(mergeQueue, 0, len(syms))
	push := func(i int) {
		if i < 0 || syms[i].next < 0 {
			return
		}
		j := syms[i].next
		pair := [2]string{word[syms[i].start:syms[i].end], word[syms[j].start:syms[j].end]}
		if r, ok := t.ranks[pair]; ok {
			heap.Push(&q, mergeCand{rank: r, pos: i, mid: syms[i].end, end: syms[j].end})
		}
	}
	for i := 0; i+1 < len(syms); i++ {
		push(i)
	}
	for q.Len() > 0 {
		c := heap.Pop(&q).(mergeCand)
		left := &syms[c.pos]
		right := left.next
		if left.end != c.mid || right < 0 || syms[right].end != c.end {
			continue
		}
		left.end = c.end
		left.next = syms[right].next
		if left.next >= 0 {
			syms[left.next].prev = c.pos
		}
		syms[right].end = -1
		if left.prev >= 0 {
			push(left.prev)
		}
		push(c.pos)
	}
	return syms
}

func parseMerges(raw json.RawMessage) (map[[2]string]int, error) {
	ranks := make(map[[2]string]int)
	if len(raw) == 0 || string(raw) == "null" {
		return ranks, nil
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		for i, m := range flat {
			a, b, ok := strings.Cut(m, " ")
			if !ok {
				return nil, fmt.Errorf("malformed merge %d: %q", i, m)
			}
			ranks[[2]string{a, b}] = i
		}
		return ranks, nil
	}
	var pairs [][2]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("parse merges: %w", err)
	}
	for i, p := range pairs {
		ranks[p] = i
	}
	return ranks, nil
}

func buildNormalizers(c component) ([]normalizeFunc, error) {
	switch c.Type {
	case "Sequence":
		var out []normalizeFunc
		for _, sub := range c.Normalizers {
			fs, err := buildNormalizers(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		return out, nil
	case "Prepend":
		p := c.Prepend
		return []normalizeFunc{func(s string) string {
			if s == "" {
				return s
			}
			return p + s
		}}, nil
	case "Replace":
		if c.Pattern == nil {
			return nil, fmt.Errorf("replace normalizer without pattern")
		}
		if c.Pattern.String != nil {
			from, to := *c.Pattern.String, c.Content
			return []normalizeFunc{func(s string) string { return strings.ReplaceAll(s, from, to) }}, nil
		}
		if c.Pattern.Regex == nil {
			return nil, fmt.Errorf("replace normalizer with empty pattern")
		}
		re, err := regexp2.Compile(*c.Pattern.Regex, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("replace pattern: %w", err)
		}
		to := c.Content
		return []normalizeFunc{func(s string) string {
			out, err := re.Replace(s, to, -1, -1)
			if err != nil {
				return s
			}
			return out
		}}, nil
	case "NFC":
		return []normalizeFunc{norm.NFC.String}, nil
	case "NFD":
		return []normalizeFunc{norm.NFD.String}, nil
	case "NFKC":
		return []normalizeFunc{norm.NFKC.String}, nil
	case "NFKD":
		return []normalizeFunc{norm.NFKD.String}, nil
	case "Lowercase":
		return []normalizeFunc{strings.ToLower}, nil
	case "Strip":
		left, right := c.StripLeft, c.StripRight
		return []normalizeFunc{func(s string) string {
			if left {
				s = strings.TrimLeftFunc(s, unicode.IsSpace)
			}
			if right {
				s = strings.TrimRightFunc(s, unicode.IsSpace)
			}
			return s
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported normalizer %q", c.Type)
	}
}

func (t *bpeTokenizer) buildPreTokenizers(c component) ([]preTokenizeFunc, error) {
	switch c.Type {
	case "Sequence":
		var out []preTokenizeFunc
		for _, sub := range c.Pretokenizers {
			fs, err := t.buildPreTokenizers(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		return out, nil
	case "ByteLevel":
		t.byteLevel = true
		var out []preTokenizeFunc
		if c.AddPrefixSpace != nil && *c.AddPrefixSpace {
			out = append(out, mapPieces(func(s string) string {
				if s == "" || strings.HasPrefix(s, " ") {
					return s
				}
				return " " + s
			}))
		}
		if c.UseRegex == nil || *c.UseRegex {
			re := regexp2.MustCompile(gpt2Pattern, regexp2.None)
			out = append(out, splitter(re, "Isolated", false))
		}
		return out, nil
	case "Split":
		if c.Pattern == nil {
			return nil, fmt.Errorf("split pre-tokenizer without pattern")
		}
		var expr string
		switch {
		case c.Pattern.Regex != nil:
			expr = *c.Pattern.Regex
		case c.Pattern.String != nil:
			expr = regexp2.Escape(*c.Pattern.String)
		default:
			return nil, fmt.Errorf("split pre-tokenizer with empty pattern")
		}
		if !splitBehaviors[c.Behavior] {
			return nil, fmt.Errorf("unsupported split behavior %q", c.Behavior)
		}
		re, err := regexp2.Compile(expr, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("split pattern: %w", err)
		}
		return []preTokenizeFunc{splitter(re, c.Behavior, c.Invert)}, nil
	case "Metaspace":
		return []preTokenizeFunc{metaspace(c)}, nil
	case "Digits":
		expr := `\p{N}+`
		if c.Individual {
			expr = `\p{N}`
		}
		return []preTokenizeFunc{splitter(regexp2.MustCompile(expr, regexp2.None), "Isolated", false)}, nil
	case "Whitespace":
		return []preTokenizeFunc{splitter(regexp2.MustCompile(`\w+|[^\w\s]+`, regexp2.None), "Removed", true)}, nil
	case "WhitespaceSplit":
		return []preTokenizeFunc{func(pieces []string) []string {
			var out []string
			for _, p := range pieces {
				out = append(out, strings.Fields(p)...)
			}
			return out
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported pre_tokenizer %q", c.Type)
	}
}

func mapPieces(f func(string) string) preTokenizeFunc {
	return func(pieces []string) []string {
		for i, p := range pieces {
			pieces[i] = f(p)
		}
		return pieces
	}
}

func metaspace(c component) preTokenizeFunc {
	repl := c.Replacement
	if repl == "" {
		repl = "▁"
	}
	scheme := c.PrependScheme
	if scheme == "" {
		scheme = "always"
		if c.AddPrefixSpace != nil && !*c.AddPrefixSpace {
			scheme = "never"
		}
	}
	split := c.Split == nil || *c.Split
	return func(pieces []string) []string {
		var out []string
		for i, p := range pieces {
			p = strings.ReplaceAll(p, " ", repl)
			if p != "" && !strings.HasPrefix(p, repl) && (scheme == "always" || (scheme == "first" && i == 0)) {
				p = repl + p
			}
			if !split {
				out = append(out, p)
				continue
			}
			for j, part := range strings.Split(p, repl) {
				switch {
				case j > 0:
					out = append(out, repl+part)
				case part != "":
					out = append(out, part)
				}
			}
		}
		return out
	}
}

// splitter splits every piece around regex matches. Without invert the
// matches are delimiters; with invert the matches are the kept content.
func splitter(re *regexp2.Regexp, behavior string, invert bool) preTokenizeFunc {
	return func(pieces []string) []string {
		var out []string
		for _, p := range pieces {
			out = append(out, splitPiece(re, p, behavior, invert)...)
		}
		return out
	}
}

// splitBehaviors are the delimiter behaviors splitPiece implements.
var splitBehaviors = map[string]bool{
	"Removed":            true,
	"Isolated":           true,
	"MergedWithPrevious": true,
	"MergedWithNext":     true,
	"Contiguous":         true,
}

type span struct {
	text  string
	delim bool
}

func splitPiece(re *regexp2.Regexp, s, behavior string, invert bool) []string {
	if s == "" {
		return nil
	}
	spans := splitSpansRaw(re, s)
	for i := range spans {
		spans[i].delim = spans[i].delim != invert
	}

	var out []string
	pendingNext := ""
	prevDelim := false
	for _, sp := range spans {
		if !sp.delim {
			out = append(out, pendingNext+sp.text)
			pendingNext = ""
			prevDelim = false
			continue
		}
		switch behavior {
		case "Removed":
		case "MergedWithPrevious":
			if len(out) > 0 {
				out[len(out)-1] += sp.text
			} else {
				out = append(out, sp.text)
			}
		case "MergedWithNext":
			pendingNext += sp.text
		case "Contiguous":
			if prevDelim && len(out) > 0 {
				out[len(out)-1] += sp.text
			} else {
				out = append(out, sp.text)
			}
		default: // Isolated
			out = append(out, sp.text)
		}
		prevDelim = true
	}
	if pendingNext != "" {
		out = append(out, pendingNext)
	}
	return out
}

func (c component) specialCount() int {
	switch c.Type {
	case "TemplateProcessing":
		n := 0
		for _, p := range c.Single {
			if p.SpecialToken == nil {
				continue
			}
			if st, ok := c.SpecialTokens[p.SpecialToken.ID]; ok && len(st.IDs) > 0 {
				n += len(st.IDs)
				continue
			}
			n++
		}
		return n
	case "BertProcessing", "RobertaProcessing":
		return 2
	case "Sequence":
		n := 0
		for _, sub := range c.Processors {
			n += sub.specialCount()
		}
		return n
	default:
		return 0
	}
}

func addedTokenPattern(tokens []addedToken) (*regexp2.Regexp, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	contents := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Content != "" {
			contents = append(contents, tok.Content)
		}
	}
	if len(contents) == 0 {
		return nil, nil
	}
	sort.Slice(contents, func(i, j int) bool { return len(contents[i]) > len(contents[j]) })
	for i, c := range contents {
		contents[i] = regexp2.Escape(c)
	}
	re, err := regexp2.Compile(strings.Join(contents, "|"), regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("added tokens: %w", err)
	}
	return re, nil
}

type segment struct {
	text  string
	added bool
}

func splitAdded(re *regexp2.Regexp, text string) []segment {
	if re == nil {
		return []segment{{text: text}}
	}
	var out []segment
	for _, p := range splitSpansRaw(re, text) {
		out = append(out, segment{text: p.text, added: p.delim})
	}
	return out
}

func splitSpansRaw(re *regexp2.Regexp, s string) []span {
	rs := []rune(s)
	var spans []span
	prev := 0
	m, err := re.FindStringMatch(s)
	for m != nil && err == nil {
		if m.Length > 0 {
			if m.Index > prev {
				spans = append(spans, span{text: string(rs[prev:m.Index])})
			}
			spans = append(spans, span{text: string(rs[m.Index : m.Index+m.Length]), delim: true})
			prev = m.Index + m.Length
		}
		m, err = re.FindNextMatch(m)
	}
	if prev < len(rs) {
		spans = append(spans, span{text: string(rs[prev:])})
	}
	return spans
}

// byteToRune is the GPT-2 reversible byte-to-unicode table.
var byteToRune = func() [256]rune {
	var table [256]rune
	var direct [256]bool
	for b := '!'; b <= '~'; b++ {
		direct[b] = true
	}
	for b := '¡'; b <= '¬'; b++ {
		direct[b] = true
	}
	for b := '®'; b <= 'ÿ'; b++ {
		direct[b] = true
	}
	n := 0
	for b := 0; b < 256; b++ {
		if direct[b] {
			table[b] = rune(b)
			continue
		}
		table[b] = rune(256 + n)
		n++
	}
	return table
}()

func byteLevelEncode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		sb.WriteRune(byteToRune[s[i]])
	}
	return sb.String()
}
