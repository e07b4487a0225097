package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serenvoice/gateway/internal/models"
	pkglogger "github.com/serenvoice/gateway/pkg/logger"
)

// ContactService relays contact form messages, limited per session
type ContactService struct {
	mailer Mailer
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

func NewContactService(mailer Mailer, logger *slog.Logger, audit *pkglogger.AuditLogger) *ContactService {
	return &ContactService{mailer: mailer, logger: logger, audit: audit}
}

// Submit sends msg through the mailer if the session's contact limiter allows it
func (s *ContactService) Submit(ctx context.Context, session *AuthSession, msg models.ContactMessage, ipAddress string) (models.RateLimitResult, error) {
	msg.Normalize()

	limiter, err := session.Limiter(ctx, ProfileContact)
	if err != nil {
		return models.RateLimitResult{}, err
	}

	result := limiter.CheckLimit(ctx)
	if !result.Allowed {
		s.audit.LogRateLimited(ctx, string(ProfileContact), session.ID(), ipAddress, result.RetryAfter)
		return result, &RateLimitError{Result: result}
	}

	if err := s.mailer.SendContactMessage(ctx, msg); err != nil {
		s.logger.Error("failed to deliver contact message",
			slog.String("session_id", session.ID()),
			slog.Any("error", err))
		return result, fmt.Errorf("failed to deliver contact message: %w", models.ErrInternalServer)
	}

	s.audit.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventContact,
		SessionID: session.ID(),
		Email:     msg.Email,
		IPAddress: ipAddress,
		Success:   true,
	})
	return result, nil
}
