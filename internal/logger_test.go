package internal

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	mutex    sync.Mutex
	messages []Message
	err      error
	// gate, when set, holds every Send until it is closed
	gate chan struct{}
}

func (s *recordingService) Send(message Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordingService) received() []Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Message(nil), s.messages...)
}

func TestLoggerPushesFeatureEvents(t *testing.T) {
	var out bytes.Buffer
	service := &recordingService{}
	logger := NewLogger(time.UTC)
	logger.SetOutput(&out)
	logger.SetMessageService(service)

	logger.FeatureEvent("BootNotification", "CP-1", "status Accepted")
	logger.Error("connect", errors.New("refused"))

	require.Eventually(t, func() bool { return len(service.received()) == 2 }, time.Second, 5*time.Millisecond)
	messages := service.received()
	first, ok := messages[0].(*FeatureLogMessage)
	require.True(t, ok)
	assert.Equal(t, "BootNotification", first.Feature)
	assert.Equal(t, "CP-1", first.ChargePointId)
	assert.Equal(t, string(Info), first.Importance)
	assert.Equal(t, FeatureLogMessageType, first.MessageType())

	second := messages[1].(*FeatureLogMessage)
	assert.Equal(t, "*", second.ChargePointId)
	assert.Equal(t, "connect: refused", second.Text)
	assert.Equal(t, string(Error), second.Importance)

	assert.Contains(t, out.String(), "status Accepted")
}

func TestLoggerRawDataOnlyInDebugMode(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(time.UTC)
	logger.SetOutput(&out)

	logger.RawDataEvent("IN", `[2,"1","Reset",{}]`)
	assert.NotContains(t, out.String(), "Reset")

	logger.SetDebugMode(true)
	logger.RawDataEvent("IN", `[2,"1","Reset",{}]`)
	assert.Contains(t, out.String(), "Reset")
}

func TestEventPublisher(t *testing.T) {
	service := &recordingService{}
	publisher := NewEventPublisher(service, nil)

	publisher.OnTransactionStart(&EventMessage{ChargePointId: "CP-1", ConnectorId: 1, TransactionId: 7})
	publisher.OnStatusNotification(&EventMessage{ConnectorId: 1, Status: "Charging"})

	require.Eventually(t, func() bool { return len(service.received()) == 2 }, time.Second, 5*time.Millisecond)
	messages := service.received()
	start := messages[0].(*EventMessage)
	assert.Equal(t, EventTransactionStart, start.Type)
	assert.Equal(t, 7, start.TransactionId)
	assert.False(t, start.Time.IsZero())
	assert.Equal(t, EventMessageType, start.MessageType())
	assert.Equal(t, EventStatusNotification, messages[1].(*EventMessage).Type)
}

func TestEventPublisherDoesNotBlock(t *testing.T) {
	service := &recordingService{gate: make(chan struct{})}
	publisher := NewEventPublisher(service, nil)

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 5; i++ {
			publisher.OnStatusNotification(&EventMessage{ConnectorId: i, Status: "Available"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing waited for an unavailable broker")
	}

	close(service.gate)
	require.Eventually(t, func() bool { return len(service.received()) == 5 }, time.Second, 5*time.Millisecond)
	for i, message := range service.received() {
		assert.Equal(t, i+1, message.(*EventMessage).ConnectorId)
	}
}

func TestEventPublisherWithoutService(t *testing.T) {
	publisher := NewEventPublisher(nil, nil)
	assert.NotPanics(t, func() {
		publisher.OnAuthorize(&EventMessage{IdTag: "TAG"})
	})
}
