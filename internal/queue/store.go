package queue

import (
	"sort"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
)

// jobStore is the authoritative map from job id to job record plus the set of
// ids currently processing. It is not safe for concurrent use on its own;
// BuildQueue serializes every access behind its mutex.
type jobStore struct {
	jobs         map[string]*models.BuildJob
	processing   map[string]struct{}
	maxJobs      int
	maxCompleted int
}

func newJobStore(maxJobs, maxCompleted int) *jobStore {
	return &jobStore{
		jobs:         make(map[string]*models.BuildJob),
		processing:   make(map[string]struct{}),
		maxJobs:      maxJobs,
		maxCompleted: maxCompleted,
	}
}

func (s *jobStore) get(id string) (*models.BuildJob, bool) {
	j, ok := s.jobs[id]
	return j, ok
}

func (s *jobStore) put(job *models.BuildJob) {
	s.jobs[job.ID] = job
}

func (s *jobStore) len() int {
	return len(s.jobs)
}

func (s *jobStore) processingCount() int {
	return len(s.processing)
}

func (s *jobStore) markProcessing(id string) {
	s.processing[id] = struct{}{}
}

func (s *jobStore) unmarkProcessing(id string) {
	delete(s.processing, id)
}

func (s *jobStore) processingIDs() []string {
	ids := make([]string, 0, len(s.processing))
	for id := range s.processing {
		ids = append(ids, id)
	}
	return ids
}

// evict drops old terminal jobs, keeping the maxCompleted most recently
// completed. Pending and processing jobs are never evicted. Returns the
// number of records removed.
func (s *jobStore) evict() int {
	var terminal []*models.BuildJob
	for _, j := range s.jobs {
		if j.Status.Terminal() {
			terminal = append(terminal, j)
		}
	}
	if len(terminal) <= s.maxCompleted {
		return 0
	}

	// Most recently completed first. Jobs without a completion stamp sort last.
	sort.Slice(terminal, func(i, k int) bool {
		ti, tk := terminal[i].CompletedAt, terminal[k].CompletedAt
		switch {
		case ti == nil:
			return false
		case tk == nil:
			return true
		default:
			return ti.After(*tk)
		}
	})

	removed := 0
	for _, j := range terminal[s.maxCompleted:] {
		delete(s.jobs, j.ID)
		removed++
	}
	return removed
}
