package notify

import (
	"context"

	"rollcall/internal/queue"
)

// JobKindMail marks queue jobs carrying a Message.
const JobKindMail = "mail"

// Async hands messages to the job queue; the worker process delivers them.
// This keeps request handlers from ever blocking on SMTP.
type Async struct {
	Q queue.Queue
}

// Send enqueues the message.
func (a Async) Send(ctx context.Context, msg Message) error {
	job, err := queue.NewJob(JobKindMail, msg)
	if err != nil {
		return err
	}
	return a.Q.Publish(ctx, job)
}
