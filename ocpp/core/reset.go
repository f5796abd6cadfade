package core

const ResetFeatureName = "Reset"

type ResetType string

type ResetStatus string

const (
	ResetTypeHard       ResetType   = "Hard"
	ResetTypeSoft       ResetType   = "Soft"
	ResetStatusAccepted ResetStatus = "Accepted"
	ResetStatusRejected ResetStatus = "Rejected"
)

type ResetRequest struct {
	Type ResetType `json:"type" validate:"required,oneof=Hard Soft"`
}

type ResetResponse struct {
	Status ResetStatus `json:"status" validate:"required,oneof=Accepted Rejected"`
}

func NewResetRequest(resetType ResetType) *ResetRequest {
	return &ResetRequest{Type: resetType}
}

func NewResetResponse(status ResetStatus) *ResetResponse {
	return &ResetResponse{Status: status}
}

func (r *ResetRequest) GetFeatureName() string {
	return ResetFeatureName
}

func (r *ResetResponse) GetFeatureName() string {
	return ResetFeatureName
}

// StopReason is the StopTransaction reason reported for transactions ended by this reset.
func (r *ResetRequest) StopReason() Reason {
	if r.Type == ResetTypeHard {
		return ReasonHardReset
	}
	return ReasonSoftReset
}
