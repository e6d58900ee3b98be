package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/formbridge/internal/config"
)

// Sender delivers one email. Implementations must be safe for concurrent
// use; the pipeline calls them from request goroutines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a single outbound email.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// SESSender sends through AWS SES v2.
type SESSender struct {
	client    *sesv2.Client
	fromName  string
	fromEmail string
}

// NewSESSender creates an SES-backed sender from the email config.
func NewSESSender(ctx context.Context, cfg config.EmailConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client:    sesv2.NewFromConfig(awsCfg),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}, nil
}

// Send delivers the message via the SES SendEmail API.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text)}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
