package app

import (
	"strings"

	"github.com/hibiken/asynq"
)

// RedisClientOpt returns the asynq connection options for the notification queue.
func (c QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     strings.TrimSpace(c.RedisAddress),
		Password: c.Password,
		DB:       c.RedisDB,
	}
}
