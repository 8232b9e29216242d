package dashboard

import (
	"context"
	"sync"
)

// Run executes jobs concurrently and applies each Update as it finishes.
// Nil jobs are skipped. It returns once every job has been applied.
func (b *Board) Run(ctx context.Context, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		if job == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Apply(job(ctx))
		}()
	}
	wg.Wait()
}
