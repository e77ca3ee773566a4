package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

const (
	defaultMaxRetry    = 5
	defaultTaskTimeout = 3 * time.Minute
)

type ClientOptions struct {
	Queue string
	// MaxRetry of zero uses the default; negative disables retries.
	MaxRetry    int
	TaskTimeout time.Duration
	// Retention keeps completed tasks inspectable for this long. Zero
	// deletes them on completion.
	Retention time.Duration
}

type Client struct {
	client *asynq.Client
	opts   ClientOptions
}

func NewClient(redisOpt asynq.RedisClientOpt, opts ClientOptions) *Client {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MaxRetry < 0 {
		opts.MaxRetry = 0
	} else if opts.MaxRetry == 0 {
		opts.MaxRetry = defaultMaxRetry
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	return &Client{
		client: asynq.NewClient(redisOpt),
		opts:   opts,
	}
}

// EnqueueWorkflowStep schedules one workflow process execution. The work
// item ID doubles as the asynq task ID so a step is never queued twice.
func (c *Client) EnqueueWorkflowStep(ctx context.Context, payload WorkflowPayload) (*asynq.TaskInfo, error) {
	task, err := NewWorkflowTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, c.taskOptions(payload)...)
}

func (c *Client) taskOptions(payload WorkflowPayload) []asynq.Option {
	options := []asynq.Option{
		asynq.Queue(c.opts.Queue),
		asynq.TaskID(payload.WorkItemID),
		asynq.MaxRetry(c.opts.MaxRetry),
		asynq.Timeout(c.opts.TaskTimeout),
	}
	if c.opts.Retention > 0 {
		options = append(options, asynq.Retention(c.opts.Retention))
	}
	return options
}

func (c *Client) Close() error {
	return c.client.Close()
}
