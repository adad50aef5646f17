// Package redisstream hands inbox notifications to out-of-process workers
// through Redis Streams.
//
// Queue implements inbox.Mailer and inbox.Pusher. Each notification becomes
// one stream entry whose "job" field holds the JSON encoded job:
//
//	q := redisstream.New(redisClient)
//	svc, err := inbox.NewService(
//	    inbox.WithStore(st),
//	    inbox.WithMailer(q),
//	    inbox.WithPusher(q),
//	)
//
// Workers read the streams with XREAD or a consumer group and do the
// actual delivery.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbaliyan/inbox"
	"github.com/rbaliyan/inbox/store"
	"github.com/redis/go-redis/v9"
)

// JobField is the stream entry field holding the encoded job.
const JobField = "job"

// EmailJob asks a worker to send a transactional email.
type EmailJob struct {
	UserID   string           `json:"userId"`
	Locale   string           `json:"locale,omitempty"`
	Template string           `json:"template"`
	Vars     []inbox.EmailVar `json:"vars,omitempty"`
	QueuedAt time.Time        `json:"queuedAt"`
}

// PushJob asks a worker to push a notification to a user's devices.
type PushJob struct {
	UserID       string                 `json:"userId"`
	Notification inbox.PushNotification `json:"notification"`
	QueuedAt     time.Time              `json:"queuedAt"`
}

// Queue adds notification jobs to Redis streams.
type Queue struct {
	client redis.UniversalClient
	opts   *options
}

var (
	_ inbox.Mailer = (*Queue)(nil)
	_ inbox.Pusher = (*Queue)(nil)
)

// New creates a Queue writing through client.
func New(client redis.UniversalClient, opts ...Option) *Queue {
	o := &options{
		emailStream: DefaultEmailStream,
		pushStream:  DefaultPushStream,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Queue{client: client, opts: o}
}

// SendTxn queues an email job for to.
func (q *Queue) SendTxn(ctx context.Context, to *store.User, template string, vars []inbox.EmailVar) error {
	job := EmailJob{
		UserID:   to.ID,
		Locale:   to.Preferences.Language,
		Template: template,
		Vars:     vars,
		QueuedAt: time.Now().UTC(),
	}
	id, err := q.add(ctx, q.opts.emailStream, job)
	if err != nil {
		return fmt.Errorf("queue email: %w", err)
	}
	q.opts.logger.Debug("email job queued", "stream", q.opts.emailStream, "entry_id", id, "user_id", to.ID, "template", template)
	return nil
}

// SendNotification queues a push job for to.
func (q *Queue) SendNotification(ctx context.Context, to *store.User, n inbox.PushNotification) error {
	job := PushJob{
		UserID:       to.ID,
		Notification: n,
		QueuedAt:     time.Now().UTC(),
	}
	id, err := q.add(ctx, q.opts.pushStream, job)
	if err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	q.opts.logger.Debug("push job queued", "stream", q.opts.pushStream, "entry_id", id, "user_id", to.ID)
	return nil
}

func (q *Queue) add(ctx context.Context, stream string, job any) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{JobField: string(data)},
	}
	if q.opts.maxLen > 0 {
		args.MaxLen = q.opts.maxLen
		args.Approx = true
	}
	return q.client.XAdd(ctx, args).Result()
}
