package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	logx "granomail/pkg/logx"
)

const defaultSendTimeout = 10 * time.Second

// SESConfig configures the SES driver. Credentials come from the default
// AWS chain (env, shared config, instance role); granomail never handles
// them directly.
type SESConfig struct {
	Region   string
	Endpoint string // optional override, e.g. for localstack
	Timeout  time.Duration
}

// SES sends mail through Amazon SES v2.
type SES struct {
	client  *sesv2.Client
	timeout time.Duration
	log     logx.Logger
}

func NewSES(ctx context.Context, cfg SESConfig, log logx.Logger) (*SES, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &SES{client: client, timeout: timeout, log: log}, nil
}

func (s *SES) Channel() string { return "ses" }

func (s *SES) Deliver(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			return fmt.Errorf("ses send failed (%s): %s", ae.ErrorCode(), ae.ErrorMessage())
		}
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.log.Info("email sent",
		logx.String("to", msg.To),
		logx.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
