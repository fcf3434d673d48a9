// Package benchmark contains Go benchmarks for the search index, measuring
// indexing throughput, query latency, and allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
)

func benchDoc(i int) index.IndexedDocument {
	title := fmt.Sprintf("Phê duyệt kế hoạch đầu tư số %d", i)
	number := fmt.Sprintf("%d/QĐ-UBND", i)
	return index.IndexedDocument{
		Record: document.Record{
			DocumentID:     fmt.Sprintf("doc-%d", i),
			DocumentNumber: number,
			Title:          title,
			Content:        "Ủy ban nhân dân tỉnh quyết định phê duyệt kế hoạch đầu tư công với danh mục dự án và phân kỳ giải ngân theo từng năm",
			DocumentType:   "Quyết định",
			SearchText:     "Quyết định " + number + " năm 2024 về " + title,
			Status:         document.StatusCompleted,
		},
		Suggestions: document.SuggestionInputs(title, number, "Quyết định"),
	}
}

// BenchmarkIndexUpsert measures per-document insert throughput.
func BenchmarkIndexUpsert(b *testing.B) {
	idx := index.New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := idx.Upsert(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func preloadIndex(b *testing.B, n int) *index.Index {
	b.Helper()
	idx := index.New()
	for i := 0; i < n; i++ {
		if err := idx.Upsert(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	return idx
}

// BenchmarkIndexSearch measures query latency at various corpus sizes.
func BenchmarkIndexSearch(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("corpus_%d", size), func(b *testing.B) {
			idx := preloadIndex(b, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				results := idx.Search("kế hoạch đầu tư", 0, 6)
				_ = results
			}
		})
	}
}

// BenchmarkIndexSearchFuzzy measures the cost of fuzzy term expansion, the
// dominant factor for misspelled queries.
func BenchmarkIndexSearchFuzzy(b *testing.B) {
	idx := preloadIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := idx.Search("hoach dau tu", 0, 6)
		_ = results
	}
}

// BenchmarkIndexSearchParallel measures concurrent read throughput.
func BenchmarkIndexSearchParallel(b *testing.B) {
	idx := preloadIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results := idx.Search("kế hoạch đầu tư", 0, 6)
			_ = results
		}
	})
}

// BenchmarkIndexComplete measures suggestion completion latency.
func BenchmarkIndexComplete(b *testing.B) {
	idx := preloadIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		options := idx.Complete("Phê duyệt", 6)
		_ = options
	}
}
