package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dexIngest/internal/model"
)

func TestJSONLWriterAppendConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dead_letter.jsonl")
	w := NewJSONLWriter(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := w.Append(model.DeadLetter{ChainID: "sepolia", LogIndex: uint64(i), Stage: "decode"}); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	seen := make(map[uint64]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry model.DeadLetter
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		seen[entry.LogIndex] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct lines, got %d", len(seen))
	}
}
