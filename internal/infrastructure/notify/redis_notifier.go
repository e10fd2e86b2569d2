package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

// RedisNotifier publishes resolutions on a pub/sub channel; the requester's
// workstation subscribes to it.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

var _ ports.Notifier = (*RedisNotifier)(nil)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// resolvedMessage is the wire payload on the channel.
type resolvedMessage struct {
	Type            string `json:"type"`
	ChangeRequestID string `json:"change_request_id"`
	IncidentID      string `json:"incident_id"`
	IncidentCode    string `json:"incident_code"`
	Kind            string `json:"kind"`
	Outcome         string `json:"outcome"`
	RequesterID     string `json:"requester_id"`
	ResolvedBy      string `json:"resolved_by"`
	Note            string `json:"note,omitempty"`
	ResolvedAt      string `json:"resolved_at"`
}

func NewRedisNotifier(ctx context.Context, opts RedisOptions) (*RedisNotifier, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		return nil, errors.New("notify channel is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrapf(err, "connect to redis %s", opts.Addr)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

func (n *RedisNotifier) ChangeRequestResolved(ctx context.Context, event ports.ChangeRequestResolved) error {
	payload, err := encodeResolved(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return errs.Wrapf(err, "publish to %s", n.channel)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func encodeResolved(event ports.ChangeRequestResolved) ([]byte, error) {
	raw, err := json.Marshal(resolvedMessage{
		Type:            "change_request.resolved",
		ChangeRequestID: event.ChangeRequestID,
		IncidentID:      event.IncidentID,
		IncidentCode:    event.IncidentCode,
		Kind:            event.Kind,
		Outcome:         event.Outcome,
		RequesterID:     event.RequesterID,
		ResolvedBy:      event.ResolvedBy,
		Note:            event.Note,
		ResolvedAt:      event.ResolvedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, errs.Wrap(err, "encode notification")
	}
	return raw, nil
}
