package models

type Transaction struct {
	Id          int    `json:"transaction_id"`
	ConnectorId int    `json:"connector_id"`
	IdTag       string `json:"id_tag"`
	IsActive    bool   `json:"is_active"`
	IsSampling  bool   `json:"is_sampling"`
	Samples     int    `json:"samples"`
}
