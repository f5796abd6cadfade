package internal

import "time"

const FeatureLogMessageType = "featureLogMessage"

type FeatureLogMessage struct {
	Time          string    `json:"time"`
	TimeStamp     time.Time `json:"timestamp"`
	Feature       string    `json:"feature"`
	ChargePointId string    `json:"id"`
	Text          string    `json:"text"`
	Importance    string    `json:"importance"`
}

func (fm *FeatureLogMessage) MessageType() string {
	return FeatureLogMessageType
}
