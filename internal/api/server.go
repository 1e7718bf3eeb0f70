package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"storygraph/internal/graph"
	"storygraph/internal/telegram"
	"storygraph/internal/worker"
)

// Enqueuer pushes accepted raw events onto the ingestion queue.
type Enqueuer interface {
	PushBack(ctx context.Context, raw []byte) error
}

// BatchRunner is the worker invocation the scheduler endpoint triggers.
type BatchRunner interface {
	Run(ctx context.Context) worker.Summary
}

// Reactor sends the silent ack reaction to accepted messages.
type Reactor interface {
	SetMessageReaction(ctx context.Context, chatID, messageID int64) error
}

// StoryReader serves the read API over the persisted graph.
type StoryReader interface {
	ListConversations(ctx context.Context, typeFilter string) ([]graph.ConversationSummary, error)
	ConversationTimeline(ctx context.Context, chatID int64) ([]graph.TopicGroup, error)
	ParticipantSummary(ctx context.Context, handle string) (graph.ParticipantStats, error)
}

// DialogHandler runs the exchange-workflow conversation.
type DialogHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update) error
}

type Server struct {
	echo    *echo.Echo
	events  Enqueuer
	runner  BatchRunner
	reactor Reactor
	reader  StoryReader
	dialog  DialogHandler
	log     *zap.SugaredLogger
}

func NewServer(events Enqueuer, runner BatchRunner, reactor Reactor, reader StoryReader, dialog DialogHandler, log *zap.SugaredLogger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		events:  events,
		runner:  runner,
		reactor: reactor,
		reader:  reader,
		dialog:  dialog,
		log:     log,
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	s.echo.POST("/api/webhook", s.exchangeWebhook)

	s.echo.POST("/api/story/webhook", s.storyWebhook)
	s.echo.GET("/api/story/worker", s.runWorker)
	s.echo.GET("/api/story/chat/list", s.listChats)
	s.echo.GET("/api/story/chat/:chatID", s.chatTimeline)
	s.echo.GET("/api/story/:handle", s.participantSummary)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// storyWebhook accepts a raw update and forwards it onto the queue.
// Filtering is the only logic here: private chats and the storying
// forum topics pass, everything else is ignored.
func (s *Server) storyWebhook(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var upd telegram.Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed update"})
	}

	if !acceptsUpdate(upd) {
		s.log.Infow("message ignored", "update_id", upd.UpdateID)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	ctx := c.Request().Context()
	if err := s.events.PushBack(ctx, raw); err != nil {
		s.log.Errorw("enqueue failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.log.Infow("message queued",
		"chat_id", upd.Message.Chat.ID,
		"message_id", upd.Message.MessageID,
	)

	// The event is already queued; a failed reaction is not worth a 500
	// that would make Telegram re-deliver the update.
	if err := s.reactor.SetMessageReaction(ctx, upd.Message.Chat.ID, upd.Message.MessageID); err != nil {
		s.log.Warnw("reaction failed", "err", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func acceptsUpdate(upd telegram.Update) bool {
	if upd.Message == nil || upd.Message.Chat == nil {
		return false
	}
	if upd.Message.Chat.Type == "private" {
		return true
	}
	if upd.Message.ReplyTo != nil && upd.Message.ReplyTo.ForumTopicCreated != nil {
		topic := upd.Message.ReplyTo.ForumTopicCreated.Name
		return strings.Contains(topic, "_bot") || strings.Contains(topic, "prisma_events_storying")
	}
	return false
}

func (s *Server) runWorker(c echo.Context) error {
	summary := s.runner.Run(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"status": "worker executed",
		"result": summary,
	})
}

func (s *Server) exchangeWebhook(c echo.Context) error {
	var upd telegram.Update
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed update"})
	}

	if err := s.dialog.HandleUpdate(c.Request().Context(), upd); err != nil {
		s.log.Errorw("exchange webhook failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listChats(c echo.Context) error {
	chats, err := s.reader.ListConversations(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"chats": chats})
}

func (s *Server) chatTimeline(c echo.Context) error {
	chatID, err := strconv.ParseInt(c.Param("chatID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid chat id"})
	}

	topics, err := s.reader.ConversationTimeline(c.Request().Context(), chatID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) participantSummary(c echo.Context) error {
	stats, err := s.reader.ParticipantSummary(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}
