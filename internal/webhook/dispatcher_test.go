package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	memoryPubsub "github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub/memory"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/sentry"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type DispatcherSuite struct {
	suite.Suite
	ctx context.Context
}

func TestDispatcher(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) newDispatcher() (*Dispatcher, <-chan []byte) {
	log, err := logger.NewLogger("debug")
	s.Require().NoError(err)
	ps := memoryPubsub.NewPubSub(log)
	sentrySvc := sentry.NewSentryService(config.GetDefaultConfig(), log)

	messages, err := ps.Subscribe(s.ctx, types.TopicInvoiceCreated)
	s.Require().NoError(err)

	out := make(chan []byte, 1)
	go func() {
		for msg := range messages {
			msg.Ack()
			out <- msg.Payload
		}
	}()
	return NewDispatcher(ps, sentrySvc, log), out
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *DispatcherSuite) TestHandleDispatchPublishesToNamedTopic() {
	dispatcher, out := s.newDispatcher()

	payload, err := json.Marshal(map[string]string{
		"topic":      types.TopicInvoiceCreated,
		"invoice_id": "inv_1",
	})
	s.Require().NoError(err)
	s.NoError(dispatcher.HandleDispatch(s.ctx, payload))

	select {
	case got := <-out:
		var body map[string]string
		s.Require().NoError(json.Unmarshal(got, &body))
		s.Equal("inv_1", body["invoice_id"])
		s.Equal(types.TopicInvoiceCreated, body["topic"])
	case <-time.After(time.Second):
		s.Fail("no message arrived on the topic")
	}
}

func (s *DispatcherSuite) TestHandleDispatchRejectsMalformedPayload() {
	dispatcher, _ := s.newDispatcher()

	err := dispatcher.HandleDispatch(s.ctx, json.RawMessage(`not json`))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *DispatcherSuite) TestHandleDispatchRequiresTopic() {
	dispatcher, _ := s.newDispatcher()

	err := dispatcher.HandleDispatch(s.ctx, json.RawMessage(`{"invoice_id":"inv_1"}`))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
