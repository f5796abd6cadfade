package simulator

import (
	"encoding/json"
	"evsim/ocpp"
	"evsim/ocpp/core"
	"evsim/types"
	"evsim/utility"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

// responder returns the result payload for a call, a *ocpp.CallError, or nil to stay silent.
type responder func(call *ocpp.Call) interface{}

// fakeCentralSystem accepts one charge point at a time, answers its calls and can push calls of its own.
type fakeCentralSystem struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	writeMutex sync.Mutex
	mutex      sync.Mutex
	conn       *websocket.Conn
	paths      []string
	calls      []*ocpp.Call
	replies    map[string][]json.RawMessage
	responders map[string]responder
}

func newFakeCentralSystem(t *testing.T) *fakeCentralSystem {
	cs := &fakeCentralSystem{
		t:          t,
		upgrader:   websocket.Upgrader{Subprotocols: []string{types.SubProtocol16}},
		replies:    make(map[string][]json.RawMessage),
		responders: defaultResponders(),
	}
	cs.server = httptest.NewServer(http.HandlerFunc(cs.serve))
	t.Cleanup(cs.server.Close)
	return cs
}

func defaultResponders() map[string]responder {
	accepted := map[string]interface{}{"status": "Accepted"}
	return map[string]responder{
		core.BootNotificationFeatureName: func(call *ocpp.Call) interface{} {
			return core.NewBootNotificationResponse(types.Now(), 180, core.RegistrationStatusAccepted)
		},
		core.HeartbeatFeatureName: func(call *ocpp.Call) interface{} {
			return core.NewHeartbeatResponse(types.Now())
		},
		core.AuthorizeFeatureName: func(call *ocpp.Call) interface{} {
			return map[string]interface{}{"idTagInfo": accepted}
		},
		core.StartTransactionFeatureName: func(call *ocpp.Call) interface{} {
			return map[string]interface{}{"idTagInfo": accepted, "transactionId": 42}
		},
		core.StopTransactionFeatureName: func(call *ocpp.Call) interface{} {
			return map[string]interface{}{"idTagInfo": accepted}
		},
		core.StatusNotificationFeatureName: func(call *ocpp.Call) interface{} {
			return struct{}{}
		},
		core.MeterValuesFeatureName: func(call *ocpp.Call) interface{} {
			return struct{}{}
		},
	}
}

func (cs *fakeCentralSystem) url() string {
	return "ws" + strings.TrimPrefix(cs.server.URL, "http")
}

func (cs *fakeCentralSystem) on(action string, r responder) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.responders[action] = r
}

func (cs *fakeCentralSystem) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := cs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	cs.mutex.Lock()
	cs.conn = conn
	cs.paths = append(cs.paths, r.URL.Path)
	cs.mutex.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		callType, fields, err := ocpp.ParseFrame(data)
		if err != nil {
			continue
		}
		if callType != ocpp.CallTypeRequest {
			var id string
			_ = json.Unmarshal(fields[1], &id)
			cs.mutex.Lock()
			cs.replies[id] = fields
			cs.mutex.Unlock()
			continue
		}
		call, err := ocpp.ParseCall(fields)
		if err != nil {
			continue
		}
		cs.mutex.Lock()
		cs.calls = append(cs.calls, call)
		respond := cs.responders[call.Action]
		cs.mutex.Unlock()
		if respond == nil {
			continue
		}
		switch payload := respond(call).(type) {
		case nil:
		case *ocpp.CallError:
			payload.UniqueId = call.UniqueId
			cs.write(conn, payload)
		default:
			cs.write(conn, []interface{}{3, call.UniqueId, payload})
		}
	}
}

func (cs *fakeCentralSystem) write(conn *websocket.Conn, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		cs.t.Errorf("encoding frame: %s", err)
		return
	}
	cs.writeRaw(conn, data)
}

func (cs *fakeCentralSystem) writeRaw(conn *websocket.Conn, data []byte) {
	cs.writeMutex.Lock()
	defer cs.writeMutex.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (cs *fakeCentralSystem) current() *websocket.Conn {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	return cs.conn
}

// push sends a central system Call and returns its message id.
func (cs *fakeCentralSystem) push(action string, payload string) string {
	id := utility.NewUUID()
	cs.writeRaw(cs.current(), []byte(`[2,"`+id+`","`+action+`",`+payload+`]`))
	return id
}

// reply waits for the charge point's answer to a pushed call.
func (cs *fakeCentralSystem) reply(t *testing.T, id string) []json.RawMessage {
	var fields []json.RawMessage
	require.Eventually(t, func() bool {
		cs.mutex.Lock()
		defer cs.mutex.Unlock()
		fields = cs.replies[id]
		return fields != nil
	}, waitFor, 5*time.Millisecond)
	return fields
}

func (cs *fakeCentralSystem) hasReply(id string) bool {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	return cs.replies[id] != nil
}

func (cs *fakeCentralSystem) callsFor(action string) []*ocpp.Call {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	var list []*ocpp.Call
	for _, call := range cs.calls {
		if call.Action == action {
			list = append(list, call)
		}
	}
	return list
}

func (cs *fakeCentralSystem) waitCalls(t *testing.T, action string, n int) []*ocpp.Call {
	require.Eventually(t, func() bool {
		return len(cs.callsFor(action)) >= n
	}, waitFor, 5*time.Millisecond, "waiting for %d %s calls", n, action)
	return cs.callsFor(action)
}

func (cs *fakeCentralSystem) connections() []string {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	return append([]string(nil), cs.paths...)
}

// statuses lists the reported statuses of one connector in order.
func (cs *fakeCentralSystem) statuses(connectorId int) []core.ChargePointStatus {
	var list []core.ChargePointStatus
	for _, call := range cs.callsFor(core.StatusNotificationFeatureName) {
		var request core.StatusNotificationRequest
		if err := json.Unmarshal(call.Payload, &request); err != nil {
			continue
		}
		if request.ConnectorId == connectorId {
			list = append(list, request.Status)
		}
	}
	return list
}

func (cs *fakeCentralSystem) waitStatus(t *testing.T, connectorId int, status core.ChargePointStatus) {
	require.Eventually(t, func() bool {
		for _, s := range cs.statuses(connectorId) {
			if s == status {
				return true
			}
		}
		return false
	}, waitFor, 5*time.Millisecond, "waiting for connector %d %s", connectorId, status)
}

func (cs *fakeCentralSystem) dropConnection() {
	if conn := cs.current(); conn != nil {
		_ = conn.Close()
	}
}
