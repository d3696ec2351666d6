// Package notify delivers user-facing messages to the chat gateway through
// redis pub/sub. Delivery is fire-and-forget: failures are logged and never
// propagated into the operation that triggered the message.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ChannelPrefix is the pub/sub channel namespace the gateway subscribes to;
// the target account id is appended per message.
const ChannelPrefix = "notify:"

type Message struct {
	AccountID string    `json:"account_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

type Notifier struct {
	redis *redis.Client
	log   *zap.Logger
}

// New returns a notifier. A nil client is valid and turns every send into a
// logged drop, which keeps the server usable without redis.
func New(client *redis.Client, logger *zap.Logger) *Notifier {
	return &Notifier{redis: client, log: logger}
}

// Notify sends one message to one account, best-effort.
func (n *Notifier) Notify(ctx context.Context, accountID, text string) {
	if n.redis == nil {
		n.log.Debug("notification dropped, no redis",
			zap.String("account_id", accountID))
		return
	}

	payload, err := json.Marshal(Message{AccountID: accountID, Text: text, SentAt: time.Now()})
	if err != nil {
		n.log.Warn("notification encode failed", zap.Error(err))
		return
	}

	if err := n.redis.Publish(ctx, ChannelPrefix+accountID, string(payload)).Err(); err != nil {
		n.log.Warn("notification publish failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}

// Broadcast sends the same message to every listed account, best-effort.
func (n *Notifier) Broadcast(ctx context.Context, accountIDs []string, text string) {
	for _, id := range accountIDs {
		n.Notify(ctx, id, text)
	}
}
