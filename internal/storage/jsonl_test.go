package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"positionLedger/internal/model"
)

func TestJsonlAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops", "journal.jsonl")
	journal := NewJsonlJournal(path)

	first := []model.OperationRecord{
		{Op: "mint", PositionID: 1, Liquidity: "1000", Amount0: "1000", Amount1: "1000", Timestamp: 100},
		{Op: "increase", PositionID: 1, Caller: "0xabc", Liquidity: "500", Amount0: "500", Amount1: "500", Timestamp: 110},
	}
	if err := journal.Append(context.Background(), first); err != nil {
		t.Fatalf("append: %v", err)
	}
	second := []model.OperationRecord{
		{Op: "burn", PositionID: 1, Caller: "0xabc", Timestamp: 120},
	}
	if err := journal.Append(context.Background(), second); err != nil {
		t.Fatalf("append: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var got []model.OperationRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.OperationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		got = append(got, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := append(first, second...)
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJsonlAppendEmptyBatchWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := NewJsonlJournal(path)

	if err := journal.Append(context.Background(), nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("journal file created for empty batch: %v", err)
	}
}
