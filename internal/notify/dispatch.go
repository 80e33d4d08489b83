package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

// DefaultDeliveryInterval is the cadence of the delivery sweep.
const DefaultDeliveryInterval = 5 * time.Second

// Deliverer is the delivery sweep: it reads unpushed notifications,
// resolves each recipient, picks a channel, attempts one send, and marks
// the record pushed no matter what.
type Deliverer struct {
	store     Store
	users     users.Store
	sms       Sender
	messenger Sender
	logger    *slog.Logger
}

func NewDeliverer(store Store, userStore users.Store, sms, messenger Sender, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		store:     store,
		users:     userStore,
		sms:       sms,
		messenger: messenger,
		logger:    logger,
	}
}

// StartWorker runs the delivery sweep until ctx is cancelled. Intended to
// be called with `go`.
func (d *Deliverer) StartWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDeliveryInterval
	}
	d.logger.Info("notification delivery worker started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			delivered, skipped := d.DeliverOnce(ctx)
			if delivered+skipped > 0 {
				d.logger.Info("delivery sweep", "delivered", delivered, "skipped", skipped)
			}
		case <-ctx.Done():
			d.logger.Info("notification delivery worker stopped")
			return
		}
	}
}

// DeliverOnce processes every currently-unpushed notification. Failures on
// one record never block the rest.
func (d *Deliverer) DeliverOnce(ctx context.Context) (delivered, skipped int) {
	pending, err := d.store.ListUnpushed(ctx)
	if err != nil {
		d.logger.Warn("delivery sweep: list unpushed failed", "error", err)
		return 0, 0
	}

	for i := range pending {
		if d.deliverOne(ctx, &pending[i]) {
			delivered++
		} else {
			skipped++
		}
	}
	return delivered, skipped
}

// deliverOne attempts delivery of a single record and flips pushed. Returns
// true when a send went out.
func (d *Deliverer) deliverOne(ctx context.Context, n *Notification) (sent bool) {
	// pushed flips exactly once, whatever happens above.
	defer func() {
		if err := d.store.MarkPushed(ctx, n.ID); err != nil {
			d.logger.Warn("delivery sweep: mark pushed failed",
				"notification_id", n.ID, "error", err)
		}
	}()

	user, err := d.users.GetByID(ctx, n.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		// Recipient is gone; nothing to deliver to.
		return false
	}
	if err != nil {
		d.logger.Warn("delivery sweep: resolve recipient failed",
			"notification_id", n.ID, "error", err)
		return false
	}

	hint := session.SourceMobile
	if n.Source != nil {
		hint = session.Source(*n.Source)
	}

	// Channel precedence: Messenger, then SMS, then the not-yet-built
	// mobile push.
	switch {
	case (hint == session.SourceMessenger || hint == session.SourceMobile) && user.MessengerID != nil:
		if _, err := d.messenger.Send(ctx, *user.MessengerID, n.Message); err != nil {
			d.logger.Warn("delivery sweep: messenger send failed",
				"notification_id", n.ID, "error", err)
			return false
		}
		return true

	case (hint == session.SourceSMS || hint == session.SourceMobile) && user.PhoneNumber != nil:
		if _, err := d.sms.Send(ctx, *user.PhoneNumber, n.Message); err != nil {
			d.logger.Warn("delivery sweep: sms send failed",
				"notification_id", n.ID, "error", err)
			return false
		}
		return true

	case hint == session.SourceMobile:
		d.logger.Info("delivery sweep: mobile push not implemented",
			"notification_id", n.ID)
		return false

	default:
		d.logger.Info("delivery sweep: no usable channel",
			"notification_id", n.ID, "hint", hint)
		return false
	}
}
