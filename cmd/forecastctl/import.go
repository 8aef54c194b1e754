package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

type countAppender interface {
	AppendStockCount(ctx context.Context, count domain.StockCount) error
}

var countedAtLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func importCounts(ctx context.Context, repo countAppender, filePath string) (int, error) {
	log.Printf("Importing stock counts from %s\n", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	return readCounts(ctx, repo, file)
}

// readCounts expects a header row followed by item_id,count,counted_at records
func readCounts(ctx context.Context, repo countAppender, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx, err := columnIndex(header, "item_id", "count", "counted_at")
	if err != nil {
		return 0, err
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}

		count, err := parseCountRecord(record, idx)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if err := repo.AppendStockCount(ctx, count); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		imported++
	}
	return imported, nil
}

func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return nil, fmt.Errorf("missing column %q", n)
		}
	}
	return idx, nil
}

func parseCountRecord(record []string, idx map[string]int) (domain.StockCount, error) {
	itemID := strings.TrimSpace(record[idx["item_id"]])
	if itemID == "" {
		return domain.StockCount{}, errors.New("empty item_id")
	}
	count, err := strconv.ParseFloat(strings.TrimSpace(record[idx["count"]]), 64)
	if err != nil {
		return domain.StockCount{}, fmt.Errorf("invalid count: %w", err)
	}
	if count < 0 {
		return domain.StockCount{}, fmt.Errorf("negative count %v", count)
	}
	countedAt, err := parseCountedAt(strings.TrimSpace(record[idx["counted_at"]]))
	if err != nil {
		return domain.StockCount{}, err
	}
	return domain.StockCount{ItemID: itemID, Count: count, CountedAt: countedAt}, nil
}

func parseCountedAt(raw string) (time.Time, error) {
	for _, layout := range countedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid counted_at %q", raw)
}
