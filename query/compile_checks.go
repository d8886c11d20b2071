package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

var (
	_ gocmd.Querier[GetMessageMessage, core.Message]             = (*GetMessageQuery)(nil)
	_ gocmd.Querier[GetMessageByProviderIDMessage, core.Message] = (*GetMessageByProviderIDQuery)(nil)
	_ gocmd.Querier[ListMessagesMessage, core.MessagePage]       = (*ListMessagesQuery)(nil)
)
