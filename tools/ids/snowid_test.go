package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUnique(t *testing.T) {
	const n = 5000
	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		id := Generate()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateUniqueConcurrent(t *testing.T) {
	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestSetNodeIDOutOfRange(t *testing.T) {
	SetNodeID(4096)
	assert.NotEmpty(t, GenerateString())
	SetNodeID(1)
}
