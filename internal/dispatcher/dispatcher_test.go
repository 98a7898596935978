package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_Handler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("V2xMessageReception", func(e Event) ([]string, error) {
		got = e
		return []string{"veh_0"}, nil
	})

	payload := json.RawMessage(`{"receiverName":"veh_0"}`)
	touched, err := d.Dispatch(Event{Type: "V2xMessageReception", Payload: payload})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("handler got payload %s", got.Payload)
	}
	if len(touched) != 1 || touched[0] != "veh_0" {
		t.Errorf("expected [veh_0], got %v", touched)
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d, _ := newTestDispatcher(t)

	touched, err := d.Dispatch(Event{Type: "ChargingStationUpdate"})

	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if touched != nil {
		t.Errorf("expected no touched units, got %v", touched)
	}
}

func TestDispatcher_HandlerError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("VehicleUpdates", func(e Event) ([]string, error) {
		return nil, fmt.Errorf("bad payload")
	})

	_, err := d.Dispatch(Event{Type: "VehicleUpdates"})

	if err == nil || err.Error() != "bad payload" {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("UnitsRemove", func(e Event) ([]string, error) {
		return nil, nil
	}, Logged())

	d.Dispatch(Event{Type: "UnitsRemove", Payload: json.RawMessage(`["a","b"]`)})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) != 2 {
		t.Errorf("expected 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("AgentUpdates", func(e Event) ([]string, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Type: "AgentUpdates"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_ReRegisterReplaces(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("VehicleRegistration", func(e Event) ([]string, error) { return []string{"old"}, nil })
	d.Register("VehicleRegistration", func(e Event) ([]string, error) { return []string{"new"}, nil })

	touched, _ := d.Dispatch(Event{Type: "VehicleRegistration"})

	if len(touched) != 1 || touched[0] != "new" {
		t.Errorf("expected latest handler to win, got %v", touched)
	}
}
