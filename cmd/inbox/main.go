package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-inbox/adapters/gocommand"
	"github.com/goliatone/go-inbox/adapters/gojob"
	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/internal/app"
	inboxquery "github.com/goliatone/go-inbox/query"
)

const cliName = "inbox"

var configPath string

var listFilterFlags = []string{
	inboxquery.ParamProviderID,
	inboxquery.ParamDirection,
	inboxquery.ParamFrom,
	inboxquery.ParamTo,
	inboxquery.ParamType,
	inboxquery.ParamStatus,
	inboxquery.ParamErrorCode,
	inboxquery.ParamErrorReason,
	inboxquery.ParamCreatedAt,
	inboxquery.ParamCreatedFrom,
	inboxquery.ParamCreatedTo,
}

func main() {
	rootCmd := &cobra.Command{
		Use:           cliName,
		Short:         "WhatsApp webhook inbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to ./config.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook HTTP server and queue workers",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "listen address (overrides http.address)")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE:  runMigrate,
	})

	ingestCmd := &cobra.Command{
		Use:   "ingest <number> [file]",
		Short: "Ingest one webhook payload synchronously (reads stdin without a file)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runIngest,
	}
	rootCmd.AddCommand(ingestCmd)

	messagesCmd := &cobra.Command{
		Use:   "messages",
		Short: "Inspect stored messages",
	}
	messagesCmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one message by id",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessagesGet,
	})
	messagesCmd.AddCommand(&cobra.Command{
		Use:   "find <provider-id>",
		Short: "Show one message by provider message id",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessagesFind,
	})
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		RunE:  runMessagesList,
	}
	for _, name := range listFilterFlags {
		listCmd.Flags().String(name, "", "filter by "+name)
	}
	listCmd.Flags().Int(inboxquery.ParamPage, 1, "page number")
	listCmd.Flags().Int(inboxquery.ParamPerPage, core.DefaultPerPage, "page size")
	messagesCmd.AddCommand(listCmd)
	messagesCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Soft delete one message",
		Args:  cobra.ExactArgs(1),
		RunE:  runMessagesDelete,
	})
	rootCmd.AddCommand(messagesCmd)

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the database webhook queue",
	}
	queueCmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "Count queued deliveries not yet settled",
		RunE:  runQueuePending,
	})
	queueCmd.AddCommand(&cobra.Command{
		Use:   "dead-letters",
		Short: "List dead-lettered deliveries with their payloads",
		RunE:  runQueueDeadLetters,
	})
	rootCmd.AddCommand(queueCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context, runtime core.Config) (core.Config, error) {
	cfg, err := app.LoadConfig(ctx, configPath, runtime)
	if err != nil {
		return core.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// openApp builds the service for one-shot commands. The queue is always in
// memory so inspecting messages never consumes shared deliveries.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig(ctx, core.Config{})
	if err != nil {
		return nil, err
	}
	cfg.Queue.Driver = core.QueueDriverMemory
	cfg.Log.Level = "error"
	return app.New(ctx, cfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime := core.Config{}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		runtime.HTTP.Address = addr
	}
	cfg, err := loadConfig(ctx, runtime)
	if err != nil {
		return err
	}
	service, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer service.Close()
	return service.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context(), core.Config{})
	if err != nil {
		return err
	}
	if err := app.Migrate(cmd.Context(), cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.Database.Driver)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	var (
		body []byte
		err  error
	)
	if len(args) == 2 {
		body, err = os.ReadFile(args[1])
	} else {
		body, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	service, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()

	outcome, _, err := gocommand.DispatchWithResult[inboxcommand.IngestWebhookMessage, core.Outcome](
		cmd.Context(),
		inboxcommand.IngestWebhookMessage{Number: args[0], Body: body},
	)
	if err != nil {
		return err
	}
	return printJSON(cmd, outcome)
}

func runMessagesGet(cmd *cobra.Command, args []string) error {
	service, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	record, err := service.Facade().Queries().GetMessage.Query(cmd.Context(), inboxquery.GetMessageMessage{ID: args[0]})
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func runMessagesFind(cmd *cobra.Command, args []string) error {
	service, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	record, err := service.Facade().Queries().GetMessageByProviderID.Query(cmd.Context(), inboxquery.GetMessageByProviderIDMessage{ProviderID: args[0]})
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func runMessagesList(cmd *cobra.Command, _ []string) error {
	values := url.Values{}
	for _, name := range listFilterFlags {
		if value, _ := cmd.Flags().GetString(name); value != "" {
			values.Set(name, value)
		}
	}
	page, _ := cmd.Flags().GetInt(inboxquery.ParamPage)
	perPage, _ := cmd.Flags().GetInt(inboxquery.ParamPerPage)
	values.Set(inboxquery.ParamPage, strconv.Itoa(page))
	values.Set(inboxquery.ParamPerPage, strconv.Itoa(perPage))

	filter, err := inboxquery.ParseListFilter(values)
	if err != nil {
		return err
	}
	service, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	result, err := service.Facade().Queries().ListMessages.Query(cmd.Context(), inboxquery.ListMessagesMessage{Filter: filter})
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runMessagesDelete(cmd *cobra.Command, args []string) error {
	service, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	if err := service.Facade().Commands().DeleteMessage.Execute(cmd.Context(), inboxcommand.DeleteMessageMessage{ID: args[0]}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

// openQueueApp builds the service on the configured database queue. The
// runner is never started, so inspection leaves deliveries in place.
func openQueueApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig(ctx, core.Config{})
	if err != nil {
		return nil, err
	}
	if cfg.Queue.Driver != core.QueueDriverDatabase {
		return nil, fmt.Errorf("queue: inspection needs queue.driver %q, got %q", core.QueueDriverDatabase, cfg.Queue.Driver)
	}
	cfg.Log.Level = "error"
	return app.New(ctx, cfg)
}

func runQueuePending(cmd *cobra.Command, _ []string) error {
	service, err := openQueueApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	pending, err := service.PendingJobs(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]int{"pending": pending})
}

type deadLetterView struct {
	ID       string          `json:"id"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason,omitempty"`
	Number   string          `json:"number"`
	Body     json.RawMessage `json:"body,omitempty"`
}

func runQueueDeadLetters(cmd *cobra.Command, _ []string) error {
	service, err := openQueueApp(cmd.Context())
	if err != nil {
		return err
	}
	defer service.Close()
	letters, err := service.DeadLetters(cmd.Context())
	if err != nil {
		return err
	}
	views := make([]deadLetterView, 0, len(letters))
	for _, letter := range letters {
		view := deadLetterView{ID: letter.ID, Attempts: letter.Attempts, Reason: letter.Reason}
		if webhook, err := core.DecodeWebhookJob(gojob.FromExecutionMessage(letter.Message)); err == nil {
			view.Number = webhook.Number
			if json.Valid(webhook.Body) {
				view.Body = webhook.Body
			}
		}
		views = append(views, view)
	}
	return printJSON(cmd, views)
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
