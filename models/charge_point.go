package models

type ChargePoint struct {
	Id                string         `json:"charge_point_id"`
	Vendor            string         `json:"vendor"`
	Model             string         `json:"model"`
	SerialNumber      string         `json:"serial_number"`
	FirmwareVersion   string         `json:"firmware_version"`
	IsOnline          bool           `json:"is_online"`
	OnlineSince       string         `json:"online_since,omitempty"`
	Registration      string         `json:"registration_status"`
	HeartbeatInterval int            `json:"heartbeat_interval"`
	PendingRequests   int            `json:"pending_requests"`
	Connectors        []*Connector   `json:"connectors"`
	Transactions      []*Transaction `json:"transactions"`
}
