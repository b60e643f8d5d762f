package queue

import (
	"fmt"
	"sort"

	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

// Router is the static job type -> queue table
type Router struct {
	table map[string]models.QueueName
}

// NewRouter creates a router over a copy of table
func NewRouter(table map[string]models.QueueName) *Router {
	copied := make(map[string]models.QueueName, len(table))
	for jobType, queue := range table {
		copied[jobType] = queue
	}
	return &Router{table: copied}
}

// Route returns the queue for a job type
func (r *Router) Route(jobType string) (models.QueueName, error) {
	queue, ok := r.table[jobType]
	if !ok {
		return "", fmt.Errorf("job type %q: %w", jobType, interfaces.ErrUnroutable)
	}
	return queue, nil
}

// JobTypes returns the job types routed to queue, sorted
func (r *Router) JobTypes(queue models.QueueName) []string {
	types := make([]string, 0)
	for jobType, q := range r.table {
		if q == queue {
			types = append(types, jobType)
		}
	}
	sort.Strings(types)
	return types
}
