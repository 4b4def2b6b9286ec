package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

// Notifier accepts notification-creation requests.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind domain.NotificationType, message string, issueID *int64) error
}

// NotificationService stores notifications and fans them out to delivery stubs.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	cfg           config.NotificationConfig
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Config           config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		cfg:           deps.Config,
	}
}

// Notify persists an unread notification and announces it.
func (n *NotificationService) Notify(ctx context.Context, userID int64, kind domain.NotificationType, message string, issueID *int64) error {
	notification := &domain.Notification{
		UserID:  userID,
		Type:    kind,
		Message: message,
		IssueID: issueID,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return err
	}
	if n.dispatcher != nil {
		_ = n.dispatcher.Publish(ctx, events.Event{
			Type:    events.EventNotificationCreated,
			IssueID: issueID,
			Payload: events.NotificationCreatedPayload{
				NotificationID: notification.ID,
				UserID:         userID,
				Type:           kind,
				Message:        message,
			},
		})
	}
	return nil
}

// List returns the caller's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	items, err := n.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// MarkAsRead flags one notification owned by userID.
func (n *NotificationService) MarkAsRead(ctx context.Context, id, userID int64) (*domain.Notification, error) {
	notification, err := n.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if notification.UserID != userID {
		return nil, apperrors.NewForbidden("notification belongs to another user")
	}
	if notification.Read {
		return notification, nil
	}
	if err := n.notifications.MarkRead(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	notification.Read = true
	return notification, nil
}

// MarkAllAsRead flags every unread notification of userID and reports how many changed.
func (n *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	count, err := n.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// RegisterHandlers subscribes delivery stubs and audit logging to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventNotificationCreated, n.handleNotificationCreated)
	n.dispatcher.Subscribe(events.EventIssueCreated, n.logIssueEvent)
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.logIssueEvent)
	n.dispatcher.Subscribe(events.EventIssueEscalated, n.logIssueEvent)
}

func (n *NotificationService) handleNotificationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationCreatedPayload)
	if !ok {
		return errors.New("unexpected notification payload")
	}
	n.sendEmailNotificationStub(ctx, payload)
	n.sendWebhookNotificationStub(ctx, payload)
	return nil
}

func (n *NotificationService) logIssueEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Any("payload", event.Payload),
	}
	if event.IssueID != nil {
		fields = append(fields, zap.Int64("issue_id", *event.IssueID))
	}
	n.logger.Info("issue event", fields...)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, payload events.NotificationCreatedPayload) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64("user_id", payload.UserID),
		zap.String("notification_type", string(payload.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, payload events.NotificationCreatedPayload) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64("notification_id", payload.NotificationID),
		zap.String("notification_type", string(payload.Type)))
}

// notifyBestEffort calls the notifier and logs a failure instead of returning it.
func notifyBestEffort(ctx context.Context, notifier Notifier, logger *zap.Logger, userID int64, kind domain.NotificationType, message string, issueID *int64) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, userID, kind, message, issueID); err != nil {
		fields := []zap.Field{
			zap.Int64("user_id", userID),
			zap.String("notification_type", string(kind)),
			zap.Error(err),
		}
		if issueID != nil {
			fields = append(fields, zap.Int64("issue_id", *issueID))
		}
		logger.Warn("notification delivery failed", fields...)
	}
}
