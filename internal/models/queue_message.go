package models

// QueueName identifies one of the fixed work queues
type QueueName string

const (
	QueueScraping    QueueName = "scraping"
	QueueMonitoring  QueueName = "monitoring"
	QueueMaintenance QueueName = "maintenance"
)

// AllQueues lists the queues in start-up order
var AllQueues = []QueueName{QueueScraping, QueueMonitoring, QueueMaintenance}

// QueueMessage is what travels through a queue buffer.
// Keep it small - workers reload the job record from the store before acting.
type QueueMessage struct {
	JobID   string    `json:"job_id"`
	JobType string    `json:"job_type"`
	Queue   QueueName `json:"queue"`
}
