package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead letter list of each job queue.
const DLQPrefix = "dlq:"

// DeadLetter is a receipt or email job that will not be retried. SaleID and
// Recipient are lifted out of the payload so a failed receipt can be traced
// back to its sale without decoding the job.
type DeadLetter struct {
	Queue     string          `json:"queue"`
	JobType   string          `json:"jobType"`
	SaleID    string          `json:"saleId,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	Attempts  int             `json:"attempts"`
	FailedAt  time.Time       `json:"failedAt"`
}

func newDeadLetter(queue string, job Job, reason string) DeadLetter {
	dl := DeadLetter{
		Queue:    queue,
		JobType:  job.Type,
		Payload:  job.Payload,
		Reason:   reason,
		Attempts: job.Attempts,
		FailedAt: time.Now().UTC(),
	}
	// Undecodable jobs are kept as a JSON string so the entry still marshals.
	if !json.Valid(job.Payload) {
		dl.Payload, _ = json.Marshal(string(job.Payload))
		return dl
	}
	switch job.Type {
	case JobReceipt:
		var p ReceiptJobPayload
		if json.Unmarshal(job.Payload, &p) == nil {
			dl.SaleID = p.SaleID
			if p.CustomerEmail != nil {
				dl.Recipient = *p.CustomerEmail
			}
		}
	case JobEmail:
		var p EmailJobPayload
		if json.Unmarshal(job.Payload, &p) == nil {
			dl.Recipient = p.ToEmail
		}
	}
	return dl
}

// deadLetter parks job in the DLQ of queue. Failures are logged only.
func (p *Pool) deadLetter(ctx context.Context, queue string, job Job, reason string) {
	dl := newDeadLetter(queue, job, reason)
	data, err := json.Marshal(dl)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}
	if err := p.rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("sale_id", dl.SaleID).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job parked")
}

// DeadLetterCounts returns the DLQ size of every job queue, keyed by job
// type ("receipt", "email"). Reported by /health.
func DeadLetterCounts(ctx context.Context, rdb *redis.Client) (map[string]int64, error) {
	queues := []string{QueueReceipt, QueueEmail}
	cmds := make([]*redis.IntCmd, len(queues))
	_, err := rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, q := range queues {
			cmds[i] = pipe.LLen(ctx, DLQPrefix+q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(queues))
	for i, q := range queues {
		counts[strings.TrimPrefix(q, "jobs:")] = cmds[i].Val()
	}
	return counts, nil
}
