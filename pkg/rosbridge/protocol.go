package rosbridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// rosbridge v2 operations.
const (
	OpAdvertise       = "advertise"
	OpUnadvertise     = "unadvertise"
	OpPublish         = "publish"
	OpSubscribe       = "subscribe"
	OpUnsubscribe     = "unsubscribe"
	OpCallService     = "call_service"
	OpServiceResponse = "service_response"
	OpStatus          = "status"
)

// outgoing is the union of the operation frames the client sends.
type outgoing struct {
	Op      string      `json:"op"`
	ID      string      `json:"id,omitempty"`
	Topic   string      `json:"topic,omitempty"`
	Type    string      `json:"type,omitempty"`
	Service string      `json:"service,omitempty"`
	Args    interface{} `json:"args,omitempty"`
	Msg     interface{} `json:"msg,omitempty"`
}

// incoming is the union of the operation frames the server sends.
type incoming struct {
	Op      string          `json:"op"`
	ID      string          `json:"id,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Service string          `json:"service,omitempty"`
	Values  json.RawMessage `json:"values,omitempty"`
	Result  *bool           `json:"result,omitempty"`
	Msg     json.RawMessage `json:"msg,omitempty"`
	Level   string          `json:"level,omitempty"`
}

func newRequestID(op, target string) string {
	return fmt.Sprintf("%s:%s:%s", op, target, uuid.New().String())
}

// ServiceError is returned when the middleware reports a failed service call.
type ServiceError struct {
	Service string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s failed: %s", e.Service, e.Message)
}

// serviceFailure extracts the error text carried by a failed response.
// rosbridge sends either a bare string or an object.
func serviceFailure(service string, values json.RawMessage) *ServiceError {
	var text string
	if err := json.Unmarshal(values, &text); err != nil {
		text = string(values)
	}
	return &ServiceError{Service: service, Message: text}
}
