package internal

import "errors"

type MessageService interface {
	Send(message Message) error
}

type Message interface {
	MessageType() string
}

// MessageServices delivers every message to each service in turn.
type MessageServices []MessageService

func (services MessageServices) Send(message Message) error {
	var errs []error
	for _, service := range services {
		if err := service.Send(message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
