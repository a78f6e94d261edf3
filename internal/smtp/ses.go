package smtp

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/mailblast/internal/config"
)

// SESMailer delivers through the AWS SES v2 API instead of a raw SMTP
// connection. The API is per-message, so the "session" here is the shared
// SDK client; Close is a no-op.
type SESMailer struct {
	client *sesv2.Client
}

// NewSESMailer builds an SES mailer from static credentials.
func NewSESMailer(ctx context.Context, cfg appconfig.SESConfig) (*SESMailer, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("SES credentials not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESMailer{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// Open returns the SES-backed session.
func (m *SESMailer) Open(ctx context.Context) (Session, error) {
	if m.client == nil {
		return nil, fmt.Errorf("SES client not initialized")
	}
	return &sesSession{client: m.client, ctx: ctx}, nil
}

type sesSession struct {
	client *sesv2.Client
	ctx    context.Context
}

func (s *sesSession) Send(m *Message) error {
	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{m.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(m.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(m.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(HTMLToPlain(m.HTML)), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(s.ctx, input); err != nil {
		return fmt.Errorf("sending to %s via SES: %w", m.To, err)
	}
	return nil
}

func (s *sesSession) Close() error { return nil }
