package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/serenvoice/gateway/internal/models"
	pkglogger "github.com/serenvoice/gateway/pkg/logger"
	"github.com/wneessen/go-mail"
)

// Mailer delivers contact form messages to the support inbox
type Mailer interface {
	SendContactMessage(ctx context.Context, msg models.ContactMessage) error
}

func contactSubject(msg models.ContactMessage) string {
	if msg.Subject != "" {
		return "[SerenVoice] " + msg.Subject
	}
	return "[SerenVoice] Contact form message"
}

func contactBody(msg models.ContactMessage) string {
	return fmt.Sprintf("From: %s <%s>\n\n%s\n", msg.Name, msg.Email, msg.Message)
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendContactMessage(_ context.Context, msg models.ContactMessage) error {
	m.logger.Info("contact message received",
		slog.String("email", pkglogger.SanitizedEmail(msg.Email)),
		slog.String("subject", contactSubject(msg)),
		slog.Int("length", len(msg.Message)))
	return nil
}

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends messages using AWS SES
type SESMailer struct {
	client      sesAPI
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESMailer creates a new AWS SES mailer
func NewSESMailer(ctx context.Context, region, fromAddress, toAddress string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

func (m *SESMailer) SendContactMessage(ctx context.Context, msg models.ContactMessage) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{m.toAddress},
		},
		ReplyToAddresses: []string{msg.Email},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(contactSubject(msg)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(contactBody(msg)),
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send contact message via SES",
			slog.String("email", pkglogger.SanitizedEmail(msg.Email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("contact message sent",
		slog.String("email", pkglogger.SanitizedEmail(msg.Email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   string
}

// SMTPMailer sends messages through an SMTP relay
type SMTPMailer struct {
	client *mail.Client
	from   string
	to     string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

func (m *SMTPMailer) SendContactMessage(ctx context.Context, msg models.ContactMessage) error {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return err
	}
	if err := mm.To(m.to); err != nil {
		return err
	}
	if err := mm.ReplyTo(msg.Email); err != nil {
		return err
	}
	mm.Subject(contactSubject(msg))
	mm.SetBodyString(mail.TypeTextPlain, contactBody(msg))
	return m.client.DialAndSendWithContext(ctx, mm)
}
