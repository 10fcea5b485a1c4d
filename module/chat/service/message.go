package service

import (
	"context"
	"strings"
	"time"

	"facegram/module/chat/model"
	"facegram/service/chat"
	"facegram/service/metrics"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

const MaxContentLength = 4000

// Notifier is the slice of *chat.Hub the REST path needs.
type Notifier interface {
	NotifyConversation(u chat.ConversationUpdate) int
	IsOnline(userID string) bool
}

// SendResult is what a send reports. SummaryStale means the message is
// stored but the conversation list may still show the previous one.
type SendResult struct {
	Message      *model.Message `json:"message"`
	SummaryStale bool           `json:"summaryStale"`
}

// MessageService runs the durable send path and the conversation queries.
// It never routes live message deliveries; those go through the hub.
type MessageService struct {
	store   MessageStore
	bus     EventPublisher
	hub     Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*MessageService)

func WithPublisher(p EventPublisher) Option { return func(s *MessageService) { s.bus = p } }
func WithNotifier(n Notifier) Option        { return func(s *MessageService) { s.hub = n } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *MessageService) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option {
	return func(s *MessageService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewMessageService(store MessageStore, opts ...Option) *MessageService {
	s := &MessageService{store: store, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// CreateConversation returns the conversation between caller and peer,
// creating it on first use.
func (s *MessageService) CreateConversation(ctx context.Context, caller, peer string) (*model.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, caller, peer)
	if err != nil {
		return nil, s.storageErr(err, "create conversation")
	}
	return conv, nil
}

// Send stores a message, then updates the conversation summary as a second,
// separate write. A failed summary write does not undo the message; the
// result is flagged stale and nothing is retried.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID, content string) (*SendResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.ErrValidationFailed.WrapMsg("content is required")
	}
	if len(content) > MaxContentLength {
		return nil, errors.ErrValidationFailed.WrapMsg("content too long", "max", MaxContentLength)
	}

	msg, err := s.store.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		if _, ok := errors.AsCodeError(err); ok {
			return nil, err
		}
		s.metrics.Persistence.WithLabelValues("message").Inc()
		s.log.Error("message persistence failed",
			zap.String("conversation", conversationID), zap.String("sender", senderID), zap.Error(err))
		return nil, errors.ErrPersistenceFailure.WrapMsg(err.Error(), "conversation", conversationID)
	}

	res := &SendResult{Message: msg}
	if err := s.store.UpdateConversationSummary(ctx, conversationID, msg.Content, msg.CreatedAt); err != nil {
		res.SummaryStale = true
		s.metrics.Persistence.WithLabelValues("summary").Inc()
		s.log.Warn("conversation summary update failed",
			zap.String("conversation", conversationID), zap.String("message", msg.MessageID),
			zap.Error(errors.ErrSummaryUpdateFailure.WrapMsg(err.Error())))
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, model.NewMessageCreated(msg)); err != nil {
			s.metrics.PublishError.Inc()
			s.log.Warn("message.created publish failed", zap.String("message", msg.MessageID), zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.NotifyConversation(chat.ConversationUpdate{
			ConversationID: msg.ConversationID,
			LastMessage:    msg.Content,
			LastActivityAt: msg.CreatedAt,
		})
	}
	return res, nil
}

// History returns one newest-first page of a conversation the caller takes
// part in. before is a cursor from a previous page's NextBefore.
func (s *MessageService) History(ctx context.Context, userID, conversationID, before string, limit int) (*model.MessagePage, error) {
	cursor, err := model.ParseCursor(before)
	if err != nil {
		return nil, errors.ErrValidationFailed.WrapMsg(err.Error())
	}
	if err := s.checkParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	limit = model.ClampLimit(limit)
	msgs, err := s.store.ListMessages(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, s.storageErr(err, "list messages")
	}
	page := &model.MessagePage{Messages: msgs}
	if len(msgs) == limit {
		page.NextBefore = model.CursorOf(msgs[len(msgs)-1]).String()
	}
	return page, nil
}

// List returns the caller's conversations with the peer's live presence.
func (s *MessageService) List(ctx context.Context, userID string) ([]*model.ConversationSummary, error) {
	list, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, s.storageErr(err, "list conversations")
	}
	if s.hub != nil {
		for _, c := range list {
			c.PeerOnline = s.hub.IsOnline(c.PeerID)
		}
	}
	return list, nil
}

// MarkRead moves the caller's read marker to now.
func (s *MessageService) MarkRead(ctx context.Context, userID, conversationID string) error {
	if err := s.checkParticipant(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, conversationID, userID, s.now()); err != nil {
		return s.storageErr(err, "mark read")
	}
	return nil
}

// checkParticipant answers NotFound for conversations the user is not in.
func (s *MessageService) checkParticipant(ctx context.Context, userID, conversationID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return s.storageErr(err, "get conversation")
	}
	if !conv.HasParticipant(userID) {
		return errors.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	return nil
}

// storageErr passes CodeErrors through and logs anything else, which the
// REST layer answers as an internal error.
func (s *MessageService) storageErr(err error, op string) error {
	if _, ok := errors.AsCodeError(err); ok {
		return err
	}
	s.log.Error(op+" failed", zap.Error(err))
	return errors.WrapMsg(err, op)
}
