package internal

import "time"

const EventMessageType = "event"

const (
	EventStatusNotification = "StatusNotification"
	EventTransactionStart   = "TransactionStart"
	EventTransactionStop    = "TransactionStop"
	EventAuthorize          = "Authorize"
)

// EventHandler receives charge point milestones, typically to forward them to a message broker.
type EventHandler interface {
	OnStatusNotification(event *EventMessage)
	OnTransactionStart(event *EventMessage)
	OnTransactionStop(event *EventMessage)
	OnAuthorize(event *EventMessage)
}

type EventMessage struct {
	Type          string      `json:"type"`
	ChargePointId string      `json:"charge_point_id"`
	ConnectorId   int         `json:"connector_id"`
	Time          time.Time   `json:"time"`
	IdTag         string      `json:"id_tag,omitempty"`
	TransactionId int         `json:"transaction_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	Info          string      `json:"info,omitempty"`
	Payload       interface{} `json:"payload,omitempty"`
}

func (e *EventMessage) MessageType() string {
	return EventMessageType
}

// EventPublisher forwards every event to a MessageService from its own goroutine,
// in the order the events were raised, logging delivery failures.
type EventPublisher struct {
	service MessageService
	logger  LogHandler
	queue   chan *EventMessage
}

func NewEventPublisher(service MessageService, logger LogHandler) *EventPublisher {
	publisher := &EventPublisher{service: service, logger: logger}
	if service != nil {
		publisher.queue = make(chan *EventMessage, writerBufferSize)
		go publisher.startWriter()
	}
	return publisher
}

func (p *EventPublisher) OnStatusNotification(event *EventMessage) {
	p.publish(EventStatusNotification, event)
}

func (p *EventPublisher) OnTransactionStart(event *EventMessage) {
	p.publish(EventTransactionStart, event)
}

func (p *EventPublisher) OnTransactionStop(event *EventMessage) {
	p.publish(EventTransactionStop, event)
}

func (p *EventPublisher) OnAuthorize(event *EventMessage) {
	p.publish(EventAuthorize, event)
}

// publish never blocks; a full queue drops the event
func (p *EventPublisher) publish(eventType string, event *EventMessage) {
	if p.queue == nil {
		return
	}
	event.Type = eventType
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	select {
	case p.queue <- event:
	default:
	}
}

func (p *EventPublisher) startWriter() {
	for event := range p.queue {
		if err := p.service.Send(event); err != nil && p.logger != nil {
			p.logger.Error("publish event", err)
		}
	}
}
