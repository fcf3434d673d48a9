// Command loadtest drives the document platform's HTTP API with a mixed
// read/write workload: mostly searches and suggestions, with an occasional
// upload so the ingestion path stays warm. It reports throughput and
// latency percentiles per operation class.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	UploadEvery int
	Keywords    []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
	byOperation   map[string]*atomic.Int64
	byOperationMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
		byOperation: make(map[string]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(op string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	s.byOperationMu.Lock()
	if _, ok := s.byOperation[op]; !ok {
		s.byOperation[op] = &atomic.Int64{}
	}
	s.byOperation[op].Add(1)
	s.byOperationMu.Unlock()

	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 400 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the document service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	uploadEvery := flag.Int("upload-every", 25, "send one upload per this many requests (0 disables uploads)")
	flag.Parse()

	keywords := []string{
		"quyết định phê duyệt",
		"kế hoạch đầu tư công",
		"thông báo nghỉ lễ",
		"nghị quyết hội đồng",
		"công văn hướng dẫn",
		"báo cáo tài chính",
		"chỉ thị tăng cường",
		"quy hoạch sử dụng đất",
		"tuyển dụng viên chức",
		"phòng chống thiên tai",
		"ngân sách nhà nước",
		"cải cách hành chính",
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		UploadEvery: *uploadEvery,
		Keywords:    keywords,
	}

	fmt.Println("=== Document Platform Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Upload every: %d requests\n", cfg.UploadEvery)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
		// Download redirects point at the object store, which is not the
		// system under test here.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			iteration := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				keyword := cfg.Keywords[iteration%len(cfg.Keywords)]
				var op string
				var err error
				var statusCode int
				start := time.Now()

				switch {
				case cfg.UploadEvery > 0 && iteration%cfg.UploadEvery == cfg.UploadEvery-1:
					op = "upload"
					statusCode, err = doUpload(ctx, client, cfg.BaseURL, iteration)
				case iteration%3 == 0:
					op = "suggest"
					statusCode, err = doGet(ctx, client, fmt.Sprintf("%s/api/v1/documents/suggest?query=%s&limit=6",
						cfg.BaseURL, url.QueryEscape(firstWord(keyword))))
				default:
					op = "search"
					statusCode, err = doGet(ctx, client, fmt.Sprintf("%s/api/v1/documents/search?keyword=%s&size=6",
						cfg.BaseURL, url.QueryEscape(keyword)))
				}

				stats.RecordRequest(op, time.Since(start), statusCode, err)
				iteration++
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func doGet(ctx context.Context, client *http.Client, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func doUpload(ctx context.Context, client *http.Client, baseURL string, iteration int) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fmt.Sprintf("loadtest-%d.txt", iteration))
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(part, "văn bản kiểm tra tải số %d", iteration)
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/documents/upload", &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' && i > 0 {
			return s[:i]
		}
	}
	return s
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.byOperationMu.Lock()
	ops := make([]string, 0, len(stats.byOperation))
	for op := range stats.byOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	fmt.Println()
	fmt.Println("=== Operations ===")
	for _, op := range ops {
		fmt.Printf("  %-8s %d\n", op, stats.byOperation[op].Load())
	}
	stats.byOperationMu.Unlock()

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
