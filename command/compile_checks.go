package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AcceptWebhookMessage] = (*AcceptWebhookCommand)(nil)
	_ gocmd.Commander[IngestWebhookMessage] = (*IngestWebhookCommand)(nil)
	_ gocmd.Commander[DeleteMessageMessage] = (*DeleteMessageCommand)(nil)
)
