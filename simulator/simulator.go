package simulator

import (
	"context"
	"evsim/configuration"
	"evsim/connector"
	"evsim/internal"
	"evsim/metrics/counters"
	"evsim/models"
	"evsim/ocpp/core"
	"evsim/transaction"
	"evsim/transport"
	"evsim/utility"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultRequestTimeout    = 60 * time.Second
	defaultResetDelay        = 2 * time.Second
	minHeartbeatInterval     = 10
	defaultHeartbeatInterval = 1800
)

type Options struct {
	Identity      string
	Model         string
	Configuration *configuration.Service
	Logger        internal.LogHandler
	Events        internal.EventHandler
	// TimeUnit scales heartbeat, ping, boot retry and sampling intervals, seconds by default
	TimeUnit       time.Duration
	RequestTimeout time.Duration
	ResetDelay     time.Duration
	// Random feeds the meter simulation of new transactions, math/rand when nil
	Random func() float64
}

// Simulator is a single OCPP 1.6 charge point: it owns the connection to the central system,
// the connectors and the running transactions.
type Simulator struct {
	identity       string
	model          string
	config         *configuration.Service
	logger         internal.LogHandler
	events         internal.EventHandler
	client         *transport.Client
	timeUnit       time.Duration
	requestTimeout time.Duration
	resetDelay     time.Duration
	random         func() float64

	connectors []*connector.Connector

	// lifecycle serializes Connect and Disconnect
	lifecycle sync.Mutex

	mutex             sync.Mutex
	online            bool
	onlineSince       time.Time
	registration      core.RegistrationStatus
	heartbeatInterval int
	heartbeatStop     chan struct{}
	bootRetry         *time.Timer
	transactions      map[int]*transaction.Transaction

	pendingMutex sync.Mutex
	pending      map[string]*pendingRequest
}

func New(options Options) (*Simulator, error) {
	if options.Configuration == nil {
		return nil, fmt.Errorf("configuration service is required")
	}
	if options.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	connectors, err := connector.ParseCatalog(options.Configuration.Value(configuration.KeyConnectors))
	if err != nil {
		return nil, fmt.Errorf("parsing connectors: %w", err)
	}
	s := &Simulator{
		identity:          options.Identity,
		model:             options.Model,
		config:            options.Configuration,
		logger:            options.Logger,
		events:            options.Events,
		client:            transport.NewClient(options.Logger),
		timeUnit:          options.TimeUnit,
		requestTimeout:    options.RequestTimeout,
		resetDelay:        options.ResetDelay,
		random:            options.Random,
		connectors:        connectors,
		heartbeatInterval: options.Configuration.IntValue(configuration.KeyHeartbeatInterval, defaultHeartbeatInterval),
		transactions:      make(map[int]*transaction.Transaction),
		pending:           make(map[string]*pendingRequest),
	}
	if s.timeUnit == 0 {
		s.timeUnit = time.Second
	}
	if s.requestTimeout == 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	if s.resetDelay == 0 {
		s.resetDelay = defaultResetDelay
	}
	s.client.SetMessageHandler(s.handleMessage)
	s.client.SetCloseHandler(s.handleClose)
	return s, nil
}

func (s *Simulator) Identity() string {
	return s.identity
}

func (s *Simulator) IsOnline() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.online
}

// Registration is empty until the first Boot Notification result arrives.
func (s *Simulator) Registration() core.RegistrationStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.registration
}

func (s *Simulator) IsRegistered() bool {
	return s.Registration() == core.RegistrationStatusAccepted
}

func (s *Simulator) HeartbeatInterval() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.heartbeatInterval
}

// Connectors returns the connectors ordered by id.
func (s *Simulator) Connectors() []*connector.Connector {
	return append([]*connector.Connector(nil), s.connectors...)
}

func (s *Simulator) Connector(id int) (*connector.Connector, bool) {
	for _, c := range s.connectors {
		if c.Id() == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Simulator) AddTransaction(tx *transaction.Transaction) {
	s.mutex.Lock()
	s.transactions[tx.Id()] = tx
	count := len(s.transactions)
	s.mutex.Unlock()
	counters.ObserveTransactions(s.identity, count)
}

func (s *Simulator) RemoveTransaction(id int) {
	s.mutex.Lock()
	delete(s.transactions, id)
	count := len(s.transactions)
	s.mutex.Unlock()
	counters.ObserveTransactions(s.identity, count)
}

func (s *Simulator) Transaction(id int) (*transaction.Transaction, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tx, ok := s.transactions[id]
	return tx, ok
}

// Transactions returns the registered transactions ordered by id.
func (s *Simulator) Transactions() []*transaction.Transaction {
	s.mutex.Lock()
	list := make([]*transaction.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		list = append(list, tx)
	}
	s.mutex.Unlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].Id() < list[j].Id()
	})
	return list
}

// Connect opens the websocket session and sends the Boot Notification.
func (s *Simulator) Connect(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.IsOnline() {
		return ErrAlreadyConnected
	}
	s.releasePending()

	url := strings.TrimRight(s.config.Value(configuration.KeyWebSocketUrl), "/") + "/" + s.identity
	pingInterval := s.config.IntValue(configuration.KeyWebSocketPingInterval, 0)
	if err := s.client.Connect(ctx, url, utility.Seconds(pingInterval, s.timeUnit)); err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}

	s.mutex.Lock()
	s.online = true
	s.onlineSince = time.Now()
	s.mutex.Unlock()
	counters.ObserveConnection(s.identity, true)
	s.logger.FeatureEvent("Connect", s.identity, fmt.Sprintf("connected to %s", url))

	go s.sendBootNotification()
	return nil
}

// Disconnect closes the session and takes every connector out of service.
func (s *Simulator) Disconnect(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.IsOnline() {
		return ErrNotConnected
	}
	err := s.client.Disconnect(ctx)
	s.teardown()
	for _, c := range s.connectors {
		c.Update(core.ChargePointStatusUnavailable, false)
	}
	s.logger.FeatureEvent("Disconnect", s.identity, "disconnected")
	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// handleClose runs on the reader goroutine when the socket is gone, whoever closed it.
func (s *Simulator) handleClose(err error) {
	if err != nil {
		s.logger.Warn(fmt.Sprintf("%s: connection closed: %s", s.identity, err))
	}
	s.teardown()
}

func (s *Simulator) teardown() {
	s.mutex.Lock()
	s.online = false
	s.onlineSince = time.Time{}
	s.registration = ""
	s.stopHeartbeatLocked()
	s.cancelBootRetryLocked()
	s.mutex.Unlock()
	s.releasePending()
	counters.ObserveConnection(s.identity, false)
	counters.ObserveRegistration(s.identity, false)
}

func (s *Simulator) sendBootNotification() {
	request := core.NewBootNotificationRequest(s.config.Value(configuration.KeyChargePointVendor), s.model)
	request.ChargePointSerialNumber = s.config.Value(configuration.KeyChargePointSerialNumber)
	request.FirmwareVersion = s.config.Value(configuration.KeyFirmwareVersion)
	if _, err := s.SendRequest(context.Background(), request); err != nil {
		s.logger.Error("boot notification", err)
	}
}

func (s *Simulator) sendHeartbeat() {
	if _, err := s.SendRequest(context.Background(), core.NewHeartbeatRequest()); err != nil {
		s.logger.Warn(fmt.Sprintf("%s: heartbeat not delivered: %s", s.identity, err))
	}
}

// applyBootInterval ignores intervals below the minimum and stores the rest in the catalog.
func (s *Simulator) applyBootInterval(interval int) {
	if interval < minHeartbeatInterval {
		return
	}
	s.config.Set(configuration.KeyHeartbeatInterval, fmt.Sprint(interval))
	s.mutex.Lock()
	s.heartbeatInterval = interval
	s.mutex.Unlock()
}

// setHeartbeatInterval changes the period and re-arms a running heartbeat.
func (s *Simulator) setHeartbeatInterval(interval int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.heartbeatInterval = interval
	if s.heartbeatStop != nil {
		s.stopHeartbeatLocked()
		s.startHeartbeatLocked()
	}
}

func (s *Simulator) setRegistration(status core.RegistrationStatus) {
	s.mutex.Lock()
	s.registration = status
	s.stopHeartbeatLocked()
	s.cancelBootRetryLocked()
	switch status {
	case core.RegistrationStatusAccepted:
		s.startHeartbeatLocked()
	case core.RegistrationStatusRejected:
		s.bootRetry = time.AfterFunc(utility.Seconds(s.heartbeatInterval, s.timeUnit), s.sendBootNotification)
	}
	s.mutex.Unlock()

	counters.ObserveRegistration(s.identity, status == core.RegistrationStatusAccepted)
	s.logger.FeatureEvent(core.BootNotificationFeatureName, s.identity, fmt.Sprintf("registration status: %s", status))

	if status == core.RegistrationStatusAccepted {
		for _, c := range s.connectors {
			c.Update(core.ChargePointStatusAvailable, true)
		}
		go s.announceConnectors()
	}
}

// announceConnectors reports the whole charge point and then every connector as available.
func (s *Simulator) announceConnectors() {
	ctx := context.Background()
	request := core.NewStatusNotificationRequest(0, core.ChargePointStatusAvailable, core.NoError)
	if _, err := s.SendRequest(ctx, request); err != nil {
		s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
		return
	}
	for _, c := range s.connectors {
		if err := s.SendStatusNotification(ctx, c); err != nil {
			s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
		}
	}
}

// SendStatusNotification reports the connector's current status and error code.
func (s *Simulator) SendStatusNotification(ctx context.Context, c *connector.Connector) error {
	status := c.Status()
	request := core.NewStatusNotificationRequest(c.Id(), status, c.ErrorCode())
	if _, err := s.SendRequest(ctx, request); err != nil {
		return err
	}
	if s.events != nil {
		s.events.OnStatusNotification(&internal.EventMessage{
			ChargePointId: s.identity,
			ConnectorId:   c.Id(),
			Status:        string(status),
			Info:          string(c.ErrorCode()),
		})
	}
	return nil
}

// startHeartbeatLocked must be called with the mutex held.
func (s *Simulator) startHeartbeatLocked() {
	interval := utility.Seconds(s.heartbeatInterval, s.timeUnit)
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	s.heartbeatStop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				go s.sendHeartbeat()
			}
		}
	}()
}

func (s *Simulator) stopHeartbeatLocked() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

func (s *Simulator) cancelBootRetryLocked() {
	if s.bootRetry != nil {
		s.bootRetry.Stop()
		s.bootRetry = nil
	}
}

// Status returns a point-in-time snapshot of the charge point.
func (s *Simulator) Status() *models.ChargePoint {
	s.mutex.Lock()
	state := &models.ChargePoint{
		Id:                s.identity,
		Vendor:            s.config.Value(configuration.KeyChargePointVendor),
		Model:             s.model,
		SerialNumber:      s.config.Value(configuration.KeyChargePointSerialNumber),
		FirmwareVersion:   s.config.Value(configuration.KeyFirmwareVersion),
		IsOnline:          s.online,
		Registration:      string(s.registration),
		HeartbeatInterval: s.heartbeatInterval,
	}
	if s.online {
		state.OnlineSince = utility.TimeAgo(s.onlineSince)
	}
	s.mutex.Unlock()

	state.PendingRequests = s.pendingCount()
	for _, c := range s.connectors {
		state.Connectors = append(state.Connectors, &models.Connector{
			Id:            c.Id(),
			Type:          string(c.Type()),
			MaxCurrent:    c.MaxCurrent(),
			IsEnabled:     c.IsEnabled(),
			IsReserved:    c.IsReserved(),
			ReadyToCharge: c.IsReadyToCharge(),
			Status:        string(c.Status()),
			ErrorCode:     string(c.ErrorCode()),
			EnergyWh:      c.TotalEnergyImportedWh(),
		})
	}
	state.Transactions = make([]*models.Transaction, 0)
	for _, tx := range s.Transactions() {
		state.Transactions = append(state.Transactions, &models.Transaction{
			Id:          tx.Id(),
			ConnectorId: tx.Connector().Id(),
			IdTag:       tx.IdTag(),
			IsActive:    tx.IsActive(),
			IsSampling:  tx.IsSampling(),
			Samples:     len(tx.MeterValues()),
		})
	}
	return state
}
