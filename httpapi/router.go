package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	inboxquery "github.com/goliatone/go-inbox/query"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricWebhookAccepted = "inbox.http.webhook.accepted"
	MetricWebhookDropped  = "inbox.http.webhook.dropped"
)

// Dependencies are the commands and queries served by the router.
type Dependencies struct {
	AcceptWebhook          gocmd.Commander[inboxcommand.AcceptWebhookMessage]
	GetMessage             gocmd.Querier[inboxquery.GetMessageMessage, core.Message]
	GetMessageByProviderID gocmd.Querier[inboxquery.GetMessageByProviderIDMessage, core.Message]
	ListMessages           gocmd.Querier[inboxquery.ListMessagesMessage, core.MessagePage]

	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Metrics        core.MetricsRecorder
	MaxBodyBytes   int64
	Now            func() time.Time
}

type handler struct {
	deps   Dependencies
	logger core.Logger
}

// NewRouter builds the gin engine. Routes whose dependency is nil answer 503.
func NewRouter(deps Dependencies) *gin.Engine {
	provider, logger := glog.Resolve("inbox.http", deps.LoggerProvider, deps.Logger)
	deps.LoggerProvider = provider
	deps.Logger = glog.Ensure(logger)
	if deps.Metrics == nil {
		deps.Metrics = core.NopMetricsRecorder{}
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = core.DefaultMaxBodyBytes
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{deps: deps, logger: deps.Logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   deps.Now().Unix(),
		})
	})
	router.POST("/webhook/whatsapp/:number", h.webhook)
	router.GET("/messages", h.listMessages)
	router.GET("/messages/provider/:provider_id", h.getMessageByProviderID)
	router.GET("/messages/:id", h.getMessage)
	return router
}

// webhook acknowledges every delivery. Processing failures never reach the
// provider, they are logged with the payload instead.
func (h *handler) webhook(c *gin.Context) {
	ctx := c.Request.Context()
	number := strings.TrimSpace(c.Param("number"))
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.dropOversizedWebhook(c, number, tooLarge)
		} else {
			h.dropWebhook(c, number, body, err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	msg := inboxcommand.AcceptWebhookMessage{Number: number, Body: body, ReceivedAt: h.deps.Now()}
	switch {
	case h.deps.AcceptWebhook == nil:
		err = core.NewInternalError("httpapi: webhook command is not configured")
	default:
		if err = msg.Validate(); err == nil {
			err = h.deps.AcceptWebhook.Execute(ctx, msg)
		}
	}
	if err != nil {
		h.dropWebhook(c, number, body, err)
	} else {
		core.RecordCounter(ctx, h.deps.Metrics, MetricWebhookAccepted, 1, nil)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) dropWebhook(c *gin.Context, number string, body []byte, err error) {
	ctx := c.Request.Context()
	core.RecordCounter(ctx, h.deps.Metrics, MetricWebhookDropped, 1, nil)
	core.LogFields(ctx, h.logger, "error", "webhook delivery not queued", map[string]any{
		"number":  number,
		"payload": string(body),
		"error":   err.Error(),
	})
}

func (h *handler) dropOversizedWebhook(c *gin.Context, number string, err *http.MaxBytesError) {
	ctx := c.Request.Context()
	core.RecordCounter(ctx, h.deps.Metrics, MetricWebhookDropped, 1, map[string]string{"reason": "too_large"})
	core.LogFields(ctx, h.logger, "error", "webhook delivery exceeds body limit", map[string]any{
		"number": number,
		"limit":  err.Limit,
		"error":  err.Error(),
	})
}

func (h *handler) listMessages(c *gin.Context) {
	if h.deps.ListMessages == nil {
		unavailable(c)
		return
	}
	filter, err := inboxquery.ParseListFilter(c.Request.URL.Query())
	if err != nil {
		h.writeError(c, err)
		return
	}
	page, err := h.deps.ListMessages.Query(c.Request.Context(), inboxquery.ListMessagesMessage{Filter: filter})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(page))
}

func (h *handler) getMessage(c *gin.Context) {
	if h.deps.GetMessage == nil {
		unavailable(c)
		return
	}
	msg := inboxquery.GetMessageMessage{ID: c.Param("id")}
	if err := msg.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	record, err := h.deps.GetMessage.Query(c.Request.Context(), msg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *handler) getMessageByProviderID(c *gin.Context) {
	if h.deps.GetMessageByProviderID == nil {
		unavailable(c)
		return
	}
	msg := inboxquery.GetMessageByProviderIDMessage{ProviderID: c.Param("provider_id")}
	if err := msg.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	record, err := h.deps.GetMessageByProviderID.Query(c.Request.Context(), msg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
