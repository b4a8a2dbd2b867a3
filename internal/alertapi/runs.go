package alertapi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/beacon/internal/pipeline"
)

const defaultRunCacheSize = 256

// runCache keeps the most recent pipeline runs in memory so the API can serve
// run details after the ingest response has gone out. Oldest runs are evicted
// first.
type runCache struct {
	mu    sync.RWMutex
	byID  map[string]*pipeline.RunResult
	order []string
	size  int
}

func newRunCache(size int) *runCache {
	return &runCache{
		byID: make(map[string]*pipeline.RunResult, size),
		size: size,
	}
}

func (c *runCache) put(run *pipeline.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[run.RunID]; !exists {
		c.order = append(c.order, run.RunID)
	}
	c.byID[run.RunID] = run

	for len(c.order) > c.size {
		delete(c.byID, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *runCache) get(id string) (*pipeline.RunResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.byID[id]
	return run, ok
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, ok := a.runs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}
