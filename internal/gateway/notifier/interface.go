package notifier

import "context"

// TextNotifier is the only thing the prediction service needs from a notification channel.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
