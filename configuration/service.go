package configuration

import (
	"evsim/ocpp/core"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

// value rules per writable key; keys without a rule never validate
var rules = map[string]string{
	KeyHeartbeatInterval:          "min=120,max=86400",
	KeyWebSocketPingInterval:      "min=20,max=86400",
	KeyGetConfigurationMaxKeys:    "min=1,max=100",
	KeyMeterValueSampleInterval:   "min=10,max=600",
	KeyClockAlignedDataInterval:   "min=0,max=7200",
	KeyAuthorizeRemoteTxRequests:  "oneof=true false",
	KeyStopTransactionOnInvalidId: "oneof=true false",
}

var booleanKeys = map[string]bool{
	KeyAuthorizeRemoteTxRequests:  true,
	KeyStopTransactionOnInvalidId: true,
}

// Service keeps the configuration entries of the charge point in insertion order.
type Service struct {
	mutex    sync.RWMutex
	keys     []string
	entries  map[string]core.ConfigurationKey
	validate *validator.Validate
}

func NewService(catalog []core.ConfigurationKey) *Service {
	s := &Service{
		keys:     make([]string, 0, len(catalog)),
		entries:  make(map[string]core.ConfigurationKey, len(catalog)),
		validate: validator.New(),
	}
	for _, item := range catalog {
		if _, ok := s.entries[item.Key]; !ok {
			s.keys = append(s.keys, item.Key)
		}
		s.entries[item.Key] = copyEntry(item)
	}
	return s
}

// Configuration returns a copy of every entry
func (s *Service) Configuration() []core.ConfigurationKey {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	list := make([]core.ConfigurationKey, 0, len(s.keys))
	for _, key := range s.keys {
		list = append(list, copyEntry(s.entries[key]))
	}
	return list
}

func (s *Service) Get(key string) (core.ConfigurationKey, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	item, ok := s.entries[key]
	if !ok {
		return core.ConfigurationKey{}, false
	}
	return copyEntry(item), true
}

// Value returns the value of key, empty when the key is unknown or has no value.
func (s *Service) Value(key string) string {
	item, ok := s.Get(key)
	if !ok || item.Value == nil {
		return ""
	}
	return *item.Value
}

// IntValue parses the value of key, falling back to def when it is not an integer.
func (s *Service) IntValue(key string, def int) int {
	n, err := strconv.Atoi(s.Value(key))
	if err != nil {
		return def
	}
	return n
}

// Set replaces the value of an existing key; unknown keys are ignored.
func (s *Service) Set(key, value string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	item, ok := s.entries[key]
	if !ok {
		return false
	}
	item.Value = &value
	s.entries[key] = item
	return true
}

// Validate reports whether value is acceptable for key.
func (s *Service) Validate(key, value string) bool {
	rule, ok := rules[key]
	if !ok {
		return false
	}
	if booleanKeys[key] {
		return s.validate.Var(value, rule) == nil
	}
	n, err := parseNonNegative(value)
	if err != nil {
		return false
	}
	if s.validate.Var(n, rule) != nil {
		return false
	}
	if key == KeyClockAlignedDataInterval && n > 0 {
		return n%10 == 0 || n%5 == 0
	}
	return true
}

func parseNonNegative(value string) (int, error) {
	if len(value) > 0 && value[0] == '+' {
		return 0, fmt.Errorf("unexpected sign in %q", value)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func copyEntry(item core.ConfigurationKey) core.ConfigurationKey {
	if item.Value != nil {
		value := *item.Value
		item.Value = &value
	}
	return item
}
