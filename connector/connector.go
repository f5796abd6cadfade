package connector

import (
	"encoding/json"
	"evsim/ocpp/core"
	"fmt"
	"sort"
	"sync"
)

type Type string

const (
	TypeType1   Type = "Type1"
	TypeType2   Type = "Type2"
	TypeType3   Type = "Type3"
	TypeCCS1    Type = "CCS1"
	TypeCCS2    Type = "CCS2"
	TypeCHAdeMO Type = "CHAdeMO"
	TypeTesla   Type = "Tesla"
	TypeGBTAC   Type = "GBT_AC"
	TypeGBTDC   Type = "GBT_DC"
	TypeNEMA515 Type = "NEMA5_15"
	TypeNEMA650 Type = "NEMA6_50"
	TypeOther   Type = "Other"
)

type Options struct {
	Id         int
	Type       Type
	MaxCurrent float64
}

// Connector holds the state of one physical outlet. Identity fields never change after New.
type Connector struct {
	id         int
	kind       Type
	maxCurrent float64

	mutex                 sync.RWMutex
	status                core.ChargePointStatus
	errorCode             core.ChargePointErrorCode
	enabled               bool
	reserved              bool
	totalEnergyImportedWh float64
}

// New creates a connector in the Unavailable state, disabled and without errors.
func New(options Options) *Connector {
	return &Connector{
		id:         options.Id,
		kind:       options.Type,
		maxCurrent: options.MaxCurrent,
		status:     core.ChargePointStatusUnavailable,
		errorCode:  core.NoError,
	}
}

func (c *Connector) Id() int {
	return c.id
}

func (c *Connector) Type() Type {
	return c.kind
}

func (c *Connector) MaxCurrent() float64 {
	return c.maxCurrent
}

func (c *Connector) Status() core.ChargePointStatus {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.status
}

func (c *Connector) SetStatus(status core.ChargePointStatus) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.status = status
}

func (c *Connector) ErrorCode() core.ChargePointErrorCode {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.errorCode
}

func (c *Connector) SetErrorCode(errorCode core.ChargePointErrorCode) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errorCode = errorCode
}

func (c *Connector) IsEnabled() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.enabled
}

func (c *Connector) SetEnabled(enabled bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.enabled = enabled
}

func (c *Connector) IsReserved() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reserved
}

func (c *Connector) SetReserved(reserved bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reserved = reserved
}

// IsReadyToCharge is evaluated from the current fields on every call.
func (c *Connector) IsReadyToCharge() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.enabled &&
		!c.reserved &&
		c.status == core.ChargePointStatusAvailable &&
		c.errorCode == core.NoError
}

// TryPrepare moves a ready connector to Preparing; false leaves it untouched.
func (c *Connector) TryPrepare() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.enabled || c.reserved || c.status != core.ChargePointStatusAvailable || c.errorCode != core.NoError {
		return false
	}
	c.status = core.ChargePointStatusPreparing
	return true
}

func (c *Connector) TotalEnergyImportedWh() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.totalEnergyImportedWh
}

// IncrementTotalImportedEnergy adds value to the energy register and returns the new total.
// Negative values are ignored, the register never goes down.
func (c *Connector) IncrementTotalImportedEnergy(value float64) float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if value > 0 {
		c.totalEnergyImportedWh += value
	}
	return c.totalEnergyImportedWh
}

// Update sets status and enabled flag in one step
func (c *Connector) Update(status core.ChargePointStatus, enabled bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.status = status
	c.enabled = enabled
}

type catalogEntry struct {
	MaxCurrent float64 `json:"maxCurrent"`
	Pos        int     `json:"pos"`
	Type       Type    `json:"type"`
}

type catalog struct {
	Connectors []catalogEntry `json:"connectors"`
}

// ParseCatalog builds connectors from the Connectors configuration value, ordered by position.
func ParseCatalog(value string) ([]*Connector, error) {
	var c catalog
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return nil, fmt.Errorf("parsing connectors catalog: %w", err)
	}
	seen := make(map[int]bool)
	connectors := make([]*Connector, 0, len(c.Connectors))
	for _, entry := range c.Connectors {
		if entry.Pos < 1 {
			return nil, fmt.Errorf("connector position must be positive, got %d", entry.Pos)
		}
		if seen[entry.Pos] {
			return nil, fmt.Errorf("duplicate connector position %d", entry.Pos)
		}
		seen[entry.Pos] = true
		connectors = append(connectors, New(Options{Id: entry.Pos, Type: entry.Type, MaxCurrent: entry.MaxCurrent}))
	}
	sort.Slice(connectors, func(i, j int) bool {
		return connectors[i].Id() < connectors[j].Id()
	})
	return connectors, nil
}
