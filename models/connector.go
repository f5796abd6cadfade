package models

type Connector struct {
	Id            int     `json:"connector_id"`
	Type          string  `json:"type"`
	MaxCurrent    float64 `json:"max_current"`
	IsEnabled     bool    `json:"is_enabled"`
	IsReserved    bool    `json:"is_reserved"`
	ReadyToCharge bool    `json:"ready_to_charge"`
	Status        string  `json:"status"`
	ErrorCode     string  `json:"error_code"`
	EnergyWh      float64 `json:"energy_wh"`
}
