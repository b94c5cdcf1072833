package alert

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

const testTopic = "arn:aws:sns:eu-west-2:123456789:liia"

type mockSNS struct {
	published []*sns.PublishInput
}

func (m *mockSNS) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, input)
	return &sns.PublishOutput{}, nil
}

func TestSNSSink_Send(t *testing.T) {
	mock := &mockSNS{}
	sink, err := NewSNSSink(testTopic, WithSNSClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "sns", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))

	require.Len(t, mock.published, 1)
	pub := mock.published[0]
	assert.Equal(t, testTopic, *pub.TopicArn)
	assert.Equal(t, "[warning] liia ssda903: 1 of 2 files failed", *pub.Subject)

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(*pub.Message), &decoded))
	assert.Equal(t, types.AlertLevelWarning, decoded.Level)
	assert.Equal(t, "ssda903", decoded.Dataset)
	assert.Equal(t, []string{"episodes.csv"}, decoded.FailedFiles)

	assert.Equal(t, "warning", *pub.MessageAttributes["level"].StringValue)
	assert.Equal(t, "ssda903", *pub.MessageAttributes["dataset"].StringValue)
	assert.Equal(t, "Number", *pub.MessageAttributes["failed"].DataType)
	assert.Equal(t, "1", *pub.MessageAttributes["failed"].StringValue)
}

func TestSNSSink_EmptyTopicARN(t *testing.T) {
	_, err := NewSNSSink("")
	assert.ErrorContains(t, err, "topic ARN required")
}

func TestSNSSink_SubjectTruncation(t *testing.T) {
	mock := &mockSNS{}
	sink, err := NewSNSSink(testTopic, WithSNSClient(mock))
	require.NoError(t, err)

	a := testAlert()
	a.Message = strings.Repeat("x", 200)
	require.NoError(t, sink.Send(context.Background(), a))
	assert.LessOrEqual(t, len(*mock.published[0].Subject), 100)
}
