package types

// SubProtocol16 is requested on every websocket dial.
const SubProtocol16 = "ocpp1.6"

type AuthorizationStatus string

const (
	AuthorizationStatusAccepted     AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked      AuthorizationStatus = "Blocked"
	AuthorizationStatusExpired      AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid      AuthorizationStatus = "Invalid"
	AuthorizationStatusConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

type IdTagInfo struct {
	ExpiryDate  *DateTime           `json:"expiryDate,omitempty" validate:"omitempty"`
	ParentIdTag string              `json:"parentIdTag,omitempty" validate:"omitempty,max=20"`
	Status      AuthorizationStatus `json:"status" validate:"required,oneof=Accepted Blocked Expired Invalid ConcurrentTx"`
}

// IsAccepted is false for a missing info block.
func (i *IdTagInfo) IsAccepted() bool {
	return i != nil && i.Status == AuthorizationStatusAccepted
}

func NewIdTagInfo(status AuthorizationStatus) *IdTagInfo {
	return &IdTagInfo{Status: status}
}

// ReadingContext tells the central system why a sample was taken.
type ReadingContext string

const (
	ReadingContextSampleClock      ReadingContext = "Sample.Clock"
	ReadingContextSamplePeriodic   ReadingContext = "Sample.Periodic"
	ReadingContextTransactionBegin ReadingContext = "Transaction.Begin"
)

type ValueFormat string

const ValueFormatRaw ValueFormat = "Raw"

type Measurand string

const (
	MeasurandCurrentImport              Measurand = "Current.Import"
	MeasurandEnergyActiveImportRegister Measurand = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport          Measurand = "Power.Active.Import"
	MeasurandVoltage                    Measurand = "Voltage"
)

type Location string

const LocationOutlet Location = "Outlet"

type UnitOfMeasure string

const (
	UnitOfMeasureWh UnitOfMeasure = "Wh"
	UnitOfMeasureW  UnitOfMeasure = "W"
	UnitOfMeasureA  UnitOfMeasure = "A"
	UnitOfMeasureV  UnitOfMeasure = "V"
)

type SampledValue struct {
	Value     string         `json:"value" validate:"required"`
	Context   ReadingContext `json:"context,omitempty"`
	Format    ValueFormat    `json:"format,omitempty"`
	Measurand Measurand      `json:"measurand,omitempty"`
	Location  Location       `json:"location,omitempty"`
	Unit      UnitOfMeasure  `json:"unit,omitempty"`
}

type MeterValue struct {
	Timestamp    *DateTime      `json:"timestamp" validate:"required"`
	SampledValue []SampledValue `json:"sampledValue" validate:"required,min=1,dive"`
}

// Filter returns a copy keeping only the sampled values of the given measurand.
func (mv MeterValue) Filter(measurand Measurand) MeterValue {
	filtered := make([]SampledValue, 0, 1)
	for _, sv := range mv.SampledValue {
		if sv.Measurand == measurand {
			filtered = append(filtered, sv)
		}
	}
	return MeterValue{Timestamp: mv.Timestamp, SampledValue: filtered}
}
