package inbox

import (
	"github.com/goliatone/go-inbox/adapters/gocommand"
	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	inboxquery "github.com/goliatone/go-inbox/query"
)

type Commands struct {
	AcceptWebhook *inboxcommand.AcceptWebhookCommand
	IngestWebhook *inboxcommand.IngestWebhookCommand
	DeleteMessage *inboxcommand.DeleteMessageCommand
}

type Queries struct {
	GetMessage             *inboxquery.GetMessageQuery
	GetMessageByProviderID *inboxquery.GetMessageByProviderIDQuery
	ListMessages           *inboxquery.ListMessagesQuery
}

// Facade bundles the commands and queries built over one store.
type Facade struct {
	store    core.MessageStore
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	enqueuer core.JobEnqueuer
	reader   core.MessageReader
}

// WithEnqueuer enables the AcceptWebhook command.
func WithEnqueuer(enqueuer core.JobEnqueuer) FacadeOption {
	return func(options *facadeOptions) {
		options.enqueuer = enqueuer
	}
}

// WithReader serves queries from reader instead of the store, for example a
// cached decorator.
func WithReader(reader core.MessageReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reader = reader
	}
}

func NewFacade(store core.MessageStore, ingester inboxcommand.Ingester, opts ...FacadeOption) (*Facade, error) {
	if store == nil {
		return nil, core.NewInternalError("inbox: message store is required")
	}
	if ingester == nil {
		return nil, core.NewInternalError("inbox: ingester is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	reader := cfg.reader
	if reader == nil {
		reader = store
	}

	facade := &Facade{store: store}
	facade.commands = Commands{
		IngestWebhook: inboxcommand.NewIngestWebhookCommand(ingester),
		DeleteMessage: inboxcommand.NewDeleteMessageCommand(store),
	}
	if cfg.enqueuer != nil {
		facade.commands.AcceptWebhook = inboxcommand.NewAcceptWebhookCommand(cfg.enqueuer)
	}
	facade.queries = Queries{
		GetMessage:             inboxquery.NewGetMessageQuery(reader),
		GetMessageByProviderID: inboxquery.NewGetMessageByProviderIDQuery(reader),
		ListMessages:           inboxquery.NewListMessagesQuery(reader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Store() core.MessageStore {
	if f == nil {
		return nil
	}
	return f.store
}

// Register subscribes every command and query on the go-command dispatcher.
// Close the adapter to release the subscriptions.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) error {
	if f == nil {
		return core.NewInternalError("inbox: facade is not configured")
	}
	if f.commands.AcceptWebhook != nil {
		if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.AcceptWebhook); err != nil {
			return err
		}
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.IngestWebhook); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribe(adapter, f.commands.DeleteMessage); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetMessage); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetMessageByProviderID); err != nil {
		return err
	}
	if _, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.ListMessages); err != nil {
		return err
	}
	return adapter.Initialize()
}
