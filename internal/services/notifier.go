package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/cache"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
)

// Notifier stores in-app notifications and broadcasts them for delivery.
// It never fails the calling operation.
type Notifier struct {
	Store       db.Repository[models.Notification]
	Broadcaster cache.Broadcaster
}

func NewNotifier(store db.Repository[models.Notification], b cache.Broadcaster) *Notifier {
	if b == nil {
		b = cache.Nop{}
	}
	return &Notifier{Store: store, Broadcaster: b}
}

// Notify persists n and publishes it on the notifications channel.
func (n *Notifier) Notify(ctx context.Context, note models.Notification) {
	if n == nil || n.Store == nil {
		return
	}
	note.Init(time.Now().UTC())
	if err := n.Store.Insert(ctx, &note); err != nil {
		log.WithError(err).WithField("receiver", note.Receiver.Hex()).Error("failed to store notification")
		return
	}
	if err := n.Broadcaster.Publish(ctx, cache.NotificationsChannel, note); err != nil {
		log.WithError(err).Warn("failed to broadcast notification")
	}
}
