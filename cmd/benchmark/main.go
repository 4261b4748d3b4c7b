package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/caarlos0/env/v11"
	"github.com/kdduha/bill-parser/internal/models"
)

var formatDirs = []string{"jpg", "jpeg", "png"}

func main() {
	var cfg benchConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: cfg.Timeout}

	var results []BenchResult
	for _, format := range formatDirs {
		dataPath := filepath.Join(cfg.DataDir, format)

		receipts, _ := os.ReadDir(dataPath)

		for _, receipt := range receipts {
			if receipt.IsDir() {
				continue
			}
			filePath := filepath.Join(dataPath, receipt.Name())
			res := benchmarkReceipt(ctx, client, cfg.Endpoint, filePath)

			if res.Err != nil {
				log.Println("ERR:", res.File, res.Err)
			} else {
				log.Printf("OK %s %v items=%d", res.File, res.Duration, res.Items)
			}

			results = append(results, res)
		}
	}

	printMarkdown(results)
}

func benchmarkReceipt(ctx context.Context, client *http.Client, endpoint, filePath string) BenchResult {
	res := BenchResult{
		File:   filepath.Base(filePath),
		Format: strings.TrimPrefix(filepath.Ext(filePath), "."),
	}

	fileRaw, err := os.ReadFile(filePath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = int64(len(fileRaw))

	start := time.Now()
	bill, err := upload(ctx, client, endpoint, res.File, fileRaw)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Items = len(bill.Items)
	return res
}

func upload(ctx context.Context, client *http.Client, endpoint, name string, data []byte) (*models.Bill, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(raw)),
		)
	}

	var bill models.Bill
	if err := sonic.Unmarshal(raw, &bill); err != nil {
		return nil, fmt.Errorf("reply is not a bill: %w", err)
	}
	return &bill, nil
}

func aggregate(results []BenchResult) map[string]Agg {
	m := map[string]Agg{}
	for _, r := range results {
		a := m[r.Format]
		if r.Err != nil {
			a.Failed++
			m[r.Format] = a
			continue
		}
		a.Count++
		a.TotalBytes += r.Size
		a.Total += r.Duration
		m[r.Format] = a
	}
	return m
}

func printMarkdown(results []BenchResult) {
	fmt.Println("\n## Benchmark Results")
	fmt.Println()
	fmt.Println("| Format | Requests | Failed | Avg Time | Total Time | Avg File Size |")
	fmt.Println("|--------|----------|--------|----------|------------|---------------|")

	agg := aggregate(results)

	formats := make([]string, 0, len(agg))
	for format := range agg {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	var (
		totalCount    int
		totalFailed   int
		totalDuration time.Duration
		totalBytes    int64
	)

	for _, format := range formats {
		a := agg[format]
		totalFailed += a.Failed
		if a.Count == 0 {
			fmt.Printf("| %s | 0 | %d | - | - | - |\n", format, a.Failed)
			continue
		}
		avg := a.Total / time.Duration(a.Count)
		avgSize := a.TotalBytes / int64(a.Count)
		fmt.Printf("| %s | %d | %d | %v | %v | %s |\n",
			format,
			a.Count,
			a.Failed,
			avg.Round(time.Millisecond),
			a.Total.Round(time.Millisecond),
			humanBytes(avgSize),
		)
		totalCount += a.Count
		totalDuration += a.Total
		totalBytes += a.TotalBytes
	}

	if totalCount > 0 {
		mean := totalDuration / time.Duration(totalCount)
		avgSize := totalBytes / int64(totalCount)
		fmt.Printf("| **ALL** | %d | %d | %v | %v | %s |\n",
			totalCount,
			totalFailed,
			mean.Round(time.Millisecond),
			totalDuration.Round(time.Millisecond),
			humanBytes(avgSize),
		)
	}
}

func humanBytes(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
