package queue

import (
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/models"
)

// Config sizes one named queue
type Config struct {
	// Name is the queue this config applies to
	Name models.QueueName

	// Concurrency is the number of workers draining the queue
	Concurrency int

	// Buffer is the channel capacity; Dispatch blocks while it is full
	Buffer int
}

// ConfigsFrom builds one Config per known queue from application config
func ConfigsFrom(queues common.QueuesConfig) []Config {
	configs := make([]Config, 0, len(models.AllQueues))
	for _, name := range models.AllQueues {
		qc := queues.ForQueue(name)
		configs = append(configs, Config{
			Name:        name,
			Concurrency: qc.Concurrency,
			Buffer:      qc.Buffer,
		})
	}
	return configs
}
