package chat_apps

import "context"

// NopSender discards outbound messages. It stands in when no chat platform
// is configured, so the rest of the system never has to nil-check a sender.
type NopSender struct{}

func (NopSender) SendMessage(context.Context, *OutgoingMessage) (int, error) { return 0, nil }
func (NopSender) EditMessage(context.Context, string, int, string) error     { return nil }
func (NopSender) AnswerCallback(context.Context, string, string) error       { return nil }

var _ Sender = NopSender{}
