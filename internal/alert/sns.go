package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

const (
	snsTimeout    = 10 * time.Second
	maxSNSSubject = 100
)

// SNSAPI is the subset of the SNS client used by SNSSink.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes alerts to an SNS topic. Level and dataset are also sent
// as message attributes so subscriptions can filter on them.
type SNSSink struct {
	client   SNSAPI
	topicARN string
	region   string
}

// SNSSinkOption configures an SNSSink.
type SNSSinkOption func(*SNSSink)

// WithSNSClient sets a custom SNS client (useful for testing).
func WithSNSClient(c SNSAPI) SNSSinkOption {
	return func(s *SNSSink) { s.client = c }
}

// WithSNSRegion sets the region of the default client.
func WithSNSRegion(region string) SNSSinkOption {
	return func(s *SNSSink) { s.region = region }
}

// NewSNSSink creates a new SNS alert sink.
func NewSNSSink(topicARN string, opts ...SNSSinkOption) (*SNSSink, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN required")
	}
	s := &SNSSink{topicARN: topicARN}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if s.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(s.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = sns.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SNSSink) Name() string { return "sns" }

// Send publishes the alert as JSON with a short subject line.
func (s *SNSSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, snsTimeout)
	defer cancel()
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Subject:           aws.String(subject(alert)),
		Message:           aws.String(string(data)),
		MessageAttributes: attributes(alert),
	})
	if err != nil {
		return fmt.Errorf("publishing to SNS: %w", err)
	}
	return nil
}

// subject renders "[level] liia dataset: message", truncated to the SNS
// subject limit.
func subject(alert types.Alert) string {
	s := fmt.Sprintf("[%s] liia %s: %s", alert.Level, alert.Dataset, alert.Message)
	if len(s) > maxSNSSubject {
		s = s[:maxSNSSubject]
	}
	return s
}

func attributes(alert types.Alert) map[string]snstypes.MessageAttributeValue {
	str := func(v string) snstypes.MessageAttributeValue {
		return snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	attrs := map[string]snstypes.MessageAttributeValue{
		"level": str(string(alert.Level)),
		"failed": {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(len(alert.FailedFiles))),
		},
	}
	if alert.Dataset != "" {
		attrs["dataset"] = str(alert.Dataset)
	}
	return attrs
}
