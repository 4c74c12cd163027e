package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hypersoc/relay/pkg/logging"
)

// DefaultPageSize is how many installations are fetched per page.
const DefaultPageSize = 100

// Payload is the notification message distributed to chat targets. Card
// rendering happens on the receiving side; the relay only fills the fields.
type Payload struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	AppName         string `json:"appName"`
	Description     string `json:"description"`
	NotificationURL string `json:"notificationUrl"`
}

// NewPayload builds the default notification payload around an agent
// response.
func NewPayload(response string) *Payload {
	return &Payload{
		ID:              uuid.NewString(),
		Title:           "New Event Occurred!",
		AppName:         "HyperSOC Relay Notification",
		Description:     "AI response: " + response,
		NotificationURL: "https://aka.ms/teamsfx-notification-new",
	}
}

// Channel is a single chat target that can receive a notification.
type Channel interface {
	Send(ctx context.Context, payload *Payload) error
}

// Installation is one installed conversation plus the channels under it.
type Installation interface {
	Channel
	Channels(ctx context.Context) ([]Channel, error)
}

// Installations pages through the bot's installation targets using a
// continuation token; an empty token starts the sequence and an empty
// returned token ends it.
type Installations interface {
	Page(ctx context.Context, pageSize int, continuationToken string) ([]Installation, string, error)
}

// Notifier fans an agent response out to every installation and every
// channel beneath it. Individual send failures are logged and skipped so
// one bad target does not stop the broadcast.
type Notifier struct {
	installations Installations
	pageSize      int
	logger        *slog.Logger
}

// NewNotifier creates a notifier over the given installation pager.
func NewNotifier(installations Installations, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.WithComponent("notifier")
	}
	return &Notifier{
		installations: installations,
		pageSize:      DefaultPageSize,
		logger:        logger,
	}
}

// Broadcast delivers the payload to all targets, returning the number of
// successful sends and the joined send errors.
func (n *Notifier) Broadcast(ctx context.Context, payload *Payload) (int, error) {
	delivered := 0
	var errs []error
	token := ""

	for {
		targets, next, err := n.installations.Page(ctx, n.pageSize, token)
		if err != nil {
			return delivered, err
		}

		for _, target := range targets {
			if err := target.Send(ctx, payload); err != nil {
				n.logger.Error("failed to notify installation", "error", err)
				errs = append(errs, err)
			} else {
				delivered++
			}

			channels, err := target.Channels(ctx)
			if err != nil {
				n.logger.Error("failed to list channels", "error", err)
				errs = append(errs, err)
				continue
			}
			for _, channel := range channels {
				if err := channel.Send(ctx, payload); err != nil {
					n.logger.Error("failed to notify channel", "error", err)
					errs = append(errs, err)
					continue
				}
				delivered++
			}
		}

		if next == "" {
			break
		}
		token = next
	}

	n.logger.Info("broadcast completed", "delivered", delivered, "failed", len(errs))
	return delivered, errors.Join(errs...)
}
