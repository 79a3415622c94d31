package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender is the outbound email collaborator.
type EmailSender interface {
	Send(ctx context.Context, m Email) error
}

type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SESSender sends through AWS SES.
type SESSender struct {
	client  *ses.Client
	from    string
	replyTo string
}

func NewSESSender(ctx context.Context, region, from, replyTo string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESSender{client: ses.NewFromConfig(cfg), from: from, replyTo: replyTo}, nil
}

var _ EmailSender = (*SESSender)(nil)

func (s *SESSender) Send(ctx context.Context, m Email) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{m.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(m.Subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(m.HTMLBody)},
				Text: &types.Content{Data: aws.String(m.TextBody)},
			},
		},
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}
	_, err := s.client.SendEmail(ctx, input)
	return err
}
