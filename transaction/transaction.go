package transaction

import (
	"context"
	"evsim/connector"
	"evsim/internal"
	"evsim/metrics/counters"
	"evsim/ocpp"
	"evsim/ocpp/core"
	"evsim/types"
	"evsim/utility"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	NominalVoltage   = 230.0
	voltageDeviation = 3.0
	minCurrent       = 10.0
	powerFactor      = 1.0
)

// RequestSender delivers a charge point request and waits for its result.
type RequestSender interface {
	SendRequest(ctx context.Context, request ocpp.Request) (*ocpp.CallResult, error)
}

type Options struct {
	TransactionId int
	Connector     *connector.Connector
	IdTag         string
	// SampleInterval and ClockAlignedInterval are counted in TimeUnit, seconds by default
	SampleInterval       int
	ClockAlignedInterval int
	TimeUnit             time.Duration
	Sender               RequestSender
	Logger               internal.LogHandler
	ChargePointId        string
	// Random returns values in [0,1), math/rand when nil
	Random func() float64
}

// Transaction simulates the meter of one charging session.
type Transaction struct {
	id                   int
	connector            *connector.Connector
	idTag                string
	sampleInterval       int
	clockAlignedInterval int
	timeUnit             time.Duration
	sender               RequestSender
	logger               internal.LogHandler
	chargePointId        string
	random               func() float64

	mutex        sync.Mutex
	active       bool
	meterValues  []types.MeterValue
	stopSampling chan struct{}
	clock        *cron.Cron
	// outbox holds samples not yet handed to the sender, in log order
	outbox    []types.MeterValue
	wake      chan struct{}
	delivered chan struct{}
}

func New(options Options) *Transaction {
	timeUnit := options.TimeUnit
	if timeUnit == 0 {
		timeUnit = time.Second
	}
	random := options.Random
	if random == nil {
		random = rand.Float64
	}
	return &Transaction{
		id:                   options.TransactionId,
		connector:            options.Connector,
		idTag:                options.IdTag,
		sampleInterval:       options.SampleInterval,
		clockAlignedInterval: options.ClockAlignedInterval,
		timeUnit:             timeUnit,
		sender:               options.Sender,
		logger:               options.Logger,
		chargePointId:        options.ChargePointId,
		random:               random,
	}
}

func (t *Transaction) Id() int {
	return t.id
}

func (t *Transaction) Connector() *connector.Connector {
	return t.connector
}

func (t *Transaction) IdTag() string {
	return t.idTag
}

func (t *Transaction) IsActive() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.active
}

// IsSampling is true while either the periodic or the clock-aligned schedule is armed.
func (t *Transaction) IsSampling() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stopSampling != nil || t.clock != nil
}

// MeterValues returns a copy of the sample log in insertion order.
func (t *Transaction) MeterValues() []types.MeterValue {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]types.MeterValue(nil), t.meterValues...)
}

// Start sends the transaction-begin sample and arms the periodic and clock-aligned schedules.
func (t *Transaction) Start() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.delivered != nil {
		return
	}

	t.wake = make(chan struct{}, 1)
	t.delivered = make(chan struct{})
	go t.deliver(t.wake, t.delivered)

	initial := t.initialMeterValue()
	t.meterValues = append(t.meterValues, initial)
	t.enqueue(initial)

	if t.sampleInterval > 0 {
		stop := make(chan struct{})
		t.stopSampling = stop
		go t.samplePeriodic(utility.Seconds(t.sampleInterval, t.timeUnit), stop)
	}

	if t.clockAlignedInterval > 0 {
		t.clock = cron.New()
		t.clock.Schedule(alignedSchedule{interval: utility.Seconds(t.clockAlignedInterval, t.timeUnit)}, cron.FuncJob(func() {
			t.record(types.ReadingContextSampleClock)
		}))
		t.clock.Start()
	}

	t.active = true
}

func (t *Transaction) Pause() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.active = false
}

func (t *Transaction) Resume() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.active = true
}

// Stop deactivates the transaction and cancels both schedules; calling it again has no effect.
// Samples already recorded are still delivered.
func (t *Transaction) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.active = false
	if t.stopSampling != nil {
		close(t.stopSampling)
		t.stopSampling = nil
	}
	if t.clock != nil {
		t.clock.Stop()
		t.clock = nil
	}
	if t.delivered != nil {
		close(t.delivered)
		t.delivered = nil
	}
}

// TransactionData returns every recorded sample reduced to its energy register reading.
func (t *Transaction) TransactionData() []types.MeterValue {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	data := make([]types.MeterValue, 0, len(t.meterValues))
	for _, mv := range t.meterValues {
		data = append(data, mv.Filter(types.MeasurandEnergyActiveImportRegister))
	}
	return data
}

// EnergyPerSample is the energy charged at max current during one sample interval, in Wh.
func (t *Transaction) EnergyPerSample() float64 {
	power := NominalVoltage * t.connector.MaxCurrent()
	hours := float64(t.sampleInterval) / 3600
	return utility.Round2(power * hours)
}

func (t *Transaction) samplePeriodic(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.record(types.ReadingContextSamplePeriodic)
		}
	}
}

func (t *Transaction) record(readingContext types.ReadingContext) {
	t.mutex.Lock()
	if t.stopSampling == nil && t.clock == nil {
		t.mutex.Unlock()
		return
	}
	mv := t.sampleMeterValue(readingContext)
	t.meterValues = append(t.meterValues, mv)
	t.enqueue(mv)
	t.mutex.Unlock()
	counters.ObserveEnergy(t.chargePointId, t.connector.Id(), t.connector.TotalEnergyImportedWh())
}

// enqueue must be called with the mutex held.
func (t *Transaction) enqueue(mv types.MeterValue) {
	t.outbox = append(t.outbox, mv)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// deliver sends queued samples one at a time until the transaction is stopped and the queue is empty.
func (t *Transaction) deliver(wake, stopped chan struct{}) {
	for {
		select {
		case <-wake:
			t.flush()
		case <-stopped:
			t.flush()
			return
		}
	}
}

func (t *Transaction) flush() {
	for {
		t.mutex.Lock()
		batch := t.outbox
		t.outbox = nil
		t.mutex.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, mv := range batch {
			t.send(mv)
		}
	}
}

// sampleMeterValue must be called with the mutex held.
func (t *Transaction) sampleMeterValue(readingContext types.ReadingContext) types.MeterValue {
	energy := t.connector.IncrementTotalImportedEnergy(t.EnergyPerSample())

	current := 0.0
	if t.active {
		current = t.simulateCurrent()
	}
	voltage := t.generateVoltage()
	power := 0.0
	if t.active {
		power = utility.Round2(voltage * current * powerFactor)
	}
	return t.meterValue(readingContext, energy, current, power, voltage)
}

func (t *Transaction) initialMeterValue() types.MeterValue {
	return t.meterValue(types.ReadingContextTransactionBegin, t.connector.TotalEnergyImportedWh(), 0, 0, t.generateVoltage())
}

func (t *Transaction) meterValue(readingContext types.ReadingContext, energy, current, power, voltage float64) types.MeterValue {
	sampled := func(measurand types.Measurand, unit types.UnitOfMeasure, value float64) types.SampledValue {
		return types.SampledValue{
			Value:     utility.FormatDecimal(value),
			Context:   readingContext,
			Format:    types.ValueFormatRaw,
			Measurand: measurand,
			Location:  types.LocationOutlet,
			Unit:      unit,
		}
	}
	return types.MeterValue{
		Timestamp: types.Now(),
		SampledValue: []types.SampledValue{
			sampled(types.MeasurandEnergyActiveImportRegister, types.UnitOfMeasureWh, energy),
			sampled(types.MeasurandCurrentImport, types.UnitOfMeasureA, current),
			sampled(types.MeasurandPowerActiveImport, types.UnitOfMeasureW, power),
			sampled(types.MeasurandVoltage, types.UnitOfMeasureV, voltage),
		},
	}
}

// simulateCurrent is uniform in [10, maxCurrent]
func (t *Transaction) simulateCurrent() float64 {
	return utility.Round2(t.random()*(t.connector.MaxCurrent()-minCurrent) + minCurrent)
}

func (t *Transaction) generateVoltage() float64 {
	fluctuation := t.random()*(2*voltageDeviation) - voltageDeviation
	return utility.Round2(NominalVoltage + fluctuation)
}

func (t *Transaction) send(mv types.MeterValue) {
	if t.sender == nil {
		return
	}
	request := core.NewMeterValuesRequest(t.connector.Id(), t.id, mv)
	if _, err := t.sender.SendRequest(context.Background(), request); err != nil && t.logger != nil {
		t.logger.Warn(fmt.Sprintf("transaction %d: meter values not delivered: %s", t.id, err))
	}
}

// alignedSchedule fires on multiples of interval counted from local midnight.
type alignedSchedule struct {
	interval time.Duration
}

func (s alignedSchedule) Next(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	return midnight.Add((elapsed/s.interval + 1) * s.interval)
}
