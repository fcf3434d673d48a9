// Package index implements the in-memory search index over normalised
// document records. Documents are indexed into four weighted fields and
// queried with fuzzy term matching; the index is rebuilt from the database
// on startup, so no on-disk persistence is kept here.
package index

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index/tokenizer"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
)

// Field identifies one of the searchable projections of a document.
type Field string

const (
	FieldTitle      Field = "title"
	FieldNumber     Field = "documentNumber"
	FieldContent    Field = "content"
	FieldSearchText Field = "searchText"
)

var searchFields = []Field{FieldTitle, FieldNumber, FieldContent, FieldSearchText}

// fieldBoosts weight per-field relevance. Title and document number
// dominate, content counts more than the synthetic search text.
var fieldBoosts = map[Field]float64{
	FieldTitle:      3.0,
	FieldNumber:     3.0,
	FieldContent:    2.0,
	FieldSearchText: 1.0,
}

// BM25-style term frequency saturation parameters.
const (
	k1 = 1.2
	b  = 0.75

	// minShouldMatchRatio is the fraction of distinct query terms a
	// document must match to be returned.
	minShouldMatchRatio = 0.7
)

// IndexedDocument is the unit handed to Upsert: the normalised record plus
// its precomputed suggestion inputs.
type IndexedDocument struct {
	Record      document.Record
	Suggestions []string
}

// Suggestion is a single completion option resolved to its owning document.
type Suggestion struct {
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

type docEntry struct {
	record document.Record
	// termFreqs holds per-field term frequencies, kept so Upsert and
	// Delete can unlink postings without re-tokenising.
	termFreqs map[Field]map[string]int
	// fieldLens is the token count per field, used for length norm.
	fieldLens map[Field]int
	// suggestions are the raw completion inputs for this document.
	suggestions []string
}

// Index is a thread-safe multi-field inverted index.
type Index struct {
	mu sync.RWMutex

	// postings maps field -> term -> docID -> term frequency.
	postings map[Field]map[string]map[string]int
	docs     map[string]*docEntry
	// totalLens tracks the summed field length per field, for averages.
	totalLens map[Field]int
}

// New returns an empty Index.
func New() *Index {
	idx := &Index{
		postings:  make(map[Field]map[string]map[string]int),
		docs:      make(map[string]*docEntry),
		totalLens: make(map[Field]int),
	}
	for _, f := range searchFields {
		idx.postings[f] = make(map[string]map[string]int)
	}
	return idx
}

// Count returns the number of indexed documents.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Upsert indexes doc, replacing any previous version of the same document.
func (idx *Index) Upsert(doc IndexedDocument) error {
	id := doc.Record.DocumentID
	if id == "" {
		return fmt.Errorf("%w: indexed document has no id", apperrors.ErrInvalidInput)
	}

	entry := &docEntry{
		record:      doc.Record,
		termFreqs:   make(map[Field]map[string]int),
		fieldLens:   make(map[Field]int),
		suggestions: append([]string(nil), doc.Suggestions...),
	}
	fieldTexts := map[Field]string{
		FieldTitle:      doc.Record.Title,
		FieldNumber:     doc.Record.DocumentNumber,
		FieldContent:    doc.Record.Content,
		FieldSearchText: doc.Record.SearchText,
	}
	for field, text := range fieldTexts {
		freqs := make(map[string]int)
		terms := tokenizer.Terms(text)
		for _, term := range terms {
			freqs[term]++
		}
		entry.termFreqs[field] = freqs
		entry.fieldLens[field] = len(terms)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.unlinkLocked(id)
	idx.docs[id] = entry
	for field, freqs := range entry.termFreqs {
		for term, freq := range freqs {
			byDoc := idx.postings[field][term]
			if byDoc == nil {
				byDoc = make(map[string]int)
				idx.postings[field][term] = byDoc
			}
			byDoc[id] = freq
		}
		idx.totalLens[field] += entry.fieldLens[field]
	}
	return nil
}

// Delete removes a document from the index. Deleting an unknown id is a
// no-op.
func (idx *Index) Delete(documentID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.unlinkLocked(documentID)
}

func (idx *Index) unlinkLocked(documentID string) {
	entry, ok := idx.docs[documentID]
	if !ok {
		return
	}
	for field, freqs := range entry.termFreqs {
		for term := range freqs {
			byDoc := idx.postings[field][term]
			delete(byDoc, documentID)
			if len(byDoc) == 0 {
				delete(idx.postings[field], term)
			}
		}
		idx.totalLens[field] -= entry.fieldLens[field]
	}
	delete(idx.docs, documentID)
}

// Search runs a ranked keyword query. Pagination is zero-based; an
// out-of-range page yields an empty slice, never an error.
func (idx *Index) Search(keyword string, page, size int) []document.Record {
	queryTerms := uniqueTerms(tokenizer.Terms(keyword))
	if len(queryTerms) == 0 || size <= 0 || page < 0 {
		return []document.Record{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	totalDocs := len(idx.docs)
	if totalDocs == 0 {
		return []document.Record{}
	}

	scores := make(map[string]float64)
	matched := make(map[string]int)
	for _, qt := range queryTerms {
		docsForTerm := make(map[string]bool)
		for _, field := range searchFields {
			for _, m := range idx.expandTerm(field, qt) {
				idf := idfScore(totalDocs, len(idx.postings[field][m.term]))
				avgLen := idx.avgFieldLenLocked(field)
				for docID, freq := range idx.postings[field][m.term] {
					entry := idx.docs[docID]
					norm := tfNorm(freq, entry.fieldLens[field], avgLen)
					scores[docID] += fieldBoosts[field] * idf * norm * m.weight
					docsForTerm[docID] = true
				}
			}
		}
		for docID := range docsForTerm {
			matched[docID]++
		}
	}

	minShould := int(math.Ceil(minShouldMatchRatio * float64(len(queryTerms))))
	type hit struct {
		id    string
		score float64
	}
	hits := make([]hit, 0, len(scores))
	for docID, score := range scores {
		if matched[docID] < minShould {
			continue
		}
		hits = append(hits, hit{id: docID, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	start := page * size
	if start >= len(hits) {
		return []document.Record{}
	}
	end := start + size
	if end > len(hits) {
		end = len(hits)
	}
	results := make([]document.Record, 0, end-start)
	for _, h := range hits[start:end] {
		results = append(results, idx.docs[h.id].record)
	}
	return results
}

type termMatch struct {
	term   string
	weight float64
}

// expandTerm resolves a query term to the index terms it matches in a
// field: the exact term plus fuzzy variants within the automatic edit
// distance. Fuzzy matches are down-weighted by their distance.
func (idx *Index) expandTerm(field Field, queryTerm string) []termMatch {
	matches := make([]termMatch, 0, 1)
	if _, ok := idx.postings[field][queryTerm]; ok {
		matches = append(matches, termMatch{term: queryTerm, weight: 1.0})
	}
	maxDist := autoFuzziness(queryTerm)
	if maxDist == 0 {
		return matches
	}
	for term := range idx.postings[field] {
		if term == queryTerm {
			continue
		}
		if dist, ok := editDistanceAtMost(queryTerm, term, maxDist); ok {
			matches = append(matches, termMatch{
				term:   term,
				weight: 1.0 / (1.0 + float64(dist)),
			})
		}
	}
	return matches
}

func (idx *Index) avgFieldLenLocked(field Field) float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.totalLens[field]) / float64(len(idx.docs))
}

func idfScore(totalDocs, docFreq int) float64 {
	return math.Log(1 + (float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}

func tfNorm(freq, fieldLen int, avgLen float64) float64 {
	if freq == 0 {
		return 0
	}
	tf := float64(freq)
	lenRatio := 0.0
	if avgLen > 0 {
		lenRatio = float64(fieldLen) / avgLen
	}
	return tf * (k1 + 1) / (tf + k1*(1-b+b*lenRatio))
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Complete returns up to limit completion suggestions whose inputs start
// with the given prefix, tolerating small typos in the prefix. Options are
// deduplicated on their text; exact prefix matches rank before fuzzy ones.
func (idx *Index) Complete(prefix string, limit int) []Suggestion {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || limit <= 0 {
		return []Suggestion{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	maxDist := autoFuzziness(prefix)
	prefixRunes := []rune(prefix)

	type option struct {
		sugg  Suggestion
		fuzzy bool
	}
	seen := make(map[string]bool)
	options := make([]option, 0, limit)
	for docID, entry := range idx.docs {
		for _, input := range entry.suggestions {
			lower := strings.ToLower(input)
			key := lower
			if seen[key] {
				continue
			}
			exact := strings.HasPrefix(lower, prefix)
			fuzzyOK := false
			if !exact && maxDist > 0 {
				head := lower
				if r := []rune(lower); len(r) > len(prefixRunes) {
					head = string(r[:len(prefixRunes)])
				}
				_, fuzzyOK = editDistanceAtMost(prefix, head, maxDist)
			}
			if !exact && !fuzzyOK {
				continue
			}
			seen[key] = true
			options = append(options, option{
				sugg:  Suggestion{DocumentID: docID, Text: input},
				fuzzy: !exact,
			})
		}
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].fuzzy != options[j].fuzzy {
			return !options[i].fuzzy
		}
		return options[i].sugg.Text < options[j].sugg.Text
	})
	if len(options) > limit {
		options = options[:limit]
	}
	results := make([]Suggestion, len(options))
	for i, o := range options {
		results[i] = o.sugg
	}
	return results
}

// MatchSearchText is the substring fallback for suggestions: it returns
// documents whose search text contains the query, as suggestion options.
func (idx *Index) MatchSearchText(query string, limit int) []Suggestion {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return []Suggestion{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]Suggestion, 0, limit)
	for docID, entry := range idx.docs {
		if strings.Contains(strings.ToLower(entry.record.SearchText), query) {
			results = append(results, Suggestion{
				DocumentID: docID,
				Text:       entry.record.SearchText,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Text != results[j].Text {
			return results[i].Text < results[j].Text
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
