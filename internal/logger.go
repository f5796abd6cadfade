package internal

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type Importance string

const (
	Info    Importance = " "
	Warning Importance = "?"
	Error   Importance = "!"
	Raw     Importance = "-"
)

const writerBufferSize = 100

type Logger struct {
	log            *logrus.Logger
	location       *time.Location
	debugMode      bool
	messageService MessageService
	writer         chan *FeatureLogMessage
}

func NewLogger(location *time.Location) *Logger {
	if location == nil {
		location = time.UTC
	}
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	logger := &Logger{
		log:      log,
		location: location,
		writer:   make(chan *FeatureLogMessage, writerBufferSize),
	}
	go logger.startWriter()
	return logger
}

// startWriter pushes feature messages to the attached message service, off the caller's goroutine
func (l *Logger) startWriter() {
	for message := range l.writer {
		service := l.messageService
		if service == nil {
			continue
		}
		if err := service.Send(message); err != nil {
			l.log.WithField("feature", message.Feature).Warnf("push log message failed: %s", err)
		}
	}
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
	if debugMode {
		l.log.SetLevel(logrus.DebugLevel)
	} else {
		l.log.SetLevel(logrus.InfoLevel)
	}
}

// SetMessageService must be called before the logger is shared between goroutines.
func (l *Logger) SetMessageService(service MessageService) {
	l.messageService = service
}

func (l *Logger) SetLevel(level logrus.Level) {
	l.log.SetLevel(level)
}

func (l *Logger) SetOutput(output io.Writer) {
	l.log.SetOutput(output)
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	message := l.newFeatureLogMessage(feature, id, text)
	l.entry(message).Info(text)
	l.push(Info, message)
}

func (l *Logger) Debug(text string) {
	l.log.WithField("feature", "info").Debug(text)
}

func (l *Logger) Warn(text string) {
	message := l.newFeatureLogMessage("warning", "", text)
	l.entry(message).Warn(text)
	l.push(Warning, message)
}

func (l *Logger) Error(text string, err error) {
	message := l.newFeatureLogMessage("error", "", fmt.Sprintf("%s: %s", text, err))
	l.entry(message).Error(message.Text)
	l.push(Error, message)
}

func (l *Logger) RawDataEvent(direction, data string) {
	if l.debugMode {
		l.log.WithFields(logrus.Fields{"feature": "raw", "direction": direction}).Debug(data)
	}
}

func (l *Logger) entry(message *FeatureLogMessage) *logrus.Entry {
	return l.log.WithFields(logrus.Fields{
		"client":  message.ChargePointId,
		"feature": message.Feature,
	})
}

// push never blocks; a full buffer drops the message
func (l *Logger) push(importance Importance, message *FeatureLogMessage) {
	if l.messageService == nil {
		return
	}
	message.Importance = string(importance)
	select {
	case l.writer <- message:
	default:
	}
}

func logTime(t time.Time) string {
	timeString := fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	return timeString
}

func (l *Logger) newFeatureLogMessage(feature, id, text string) *FeatureLogMessage {
	if id == "" {
		id = "*"
	}
	now := time.Now()
	return &FeatureLogMessage{
		Time:          logTime(now.In(l.location)),
		TimeStamp:     now.UTC(),
		Text:          text,
		Feature:       feature,
		ChargePointId: id,
	}
}
