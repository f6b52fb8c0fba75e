package domain

import "errors"

// ErrRecipientGone marks a permanent delivery failure: the recipient
// blocked the bot or unregistered on the platform side. Senders wrap it
// so the engine can deactivate the subscriber instead of retrying.
var ErrRecipientGone = errors.New("recipient gone")
