package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// fakeSyncProducer records messages handed to sarama.
type fakeSyncProducer struct {
	sarama.SyncProducer
	msgs []*sarama.ProducerMessage
	err  error
}

func (f *fakeSyncProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.msgs = append(f.msgs, msg)
	return 0, int64(len(f.msgs)), nil
}

func (f *fakeSyncProducer) Close() error { return nil }

func TestSendMessage(t *testing.T) {
	fp := &fakeSyncProducer{}
	p := NewProducerWithSync(fp, logger.NewNopLogger())

	err := p.SendMessage(context.Background(), "dashboard.notifications", "user-7", []byte(`{"a":"b"}`))
	require.NoError(t, err)
	require.Len(t, fp.msgs, 1)

	key, err := fp.msgs[0].Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "user-7", string(key))
	assert.Equal(t, "dashboard.notifications", fp.msgs[0].Topic)
}

func TestSendMessageWrapsError(t *testing.T) {
	fp := &fakeSyncProducer{err: errors.New("leader not available")}
	p := NewProducerWithSync(fp, logger.NewNopLogger())

	err := p.SendMessage(context.Background(), "t", "", nil)
	assert.ErrorContains(t, err, "leader not available")
}
