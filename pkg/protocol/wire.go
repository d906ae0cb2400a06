package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType is the `type` discriminator carried by every wire frame.
type MessageType string

const (
	TypeExecutionRequest     MessageType = "execution_request"
	TypeCancelRequest        MessageType = "cancel_request"
	TypeExecutionResponse    MessageType = "execution_response"
	TypeCancelResponse       MessageType = "cancel_response"
	TypeQueuePosition        MessageType = "queue_position"
	TypeProgressUpdate       MessageType = "progress_update"
	TypeStageOutput          MessageType = "stage_output"
	TypeExecutionSucceeded   MessageType = "execution_succeeded"
	TypeExecutionError       MessageType = "execution_error"
	TypeRegisterExecutor     MessageType = "register_executor"
	TypeRegistrationResponse MessageType = "registration_response"
)

// Envelope is the generic shape every frame shares: a type discriminator
// plus whatever payload fields that type carries, flattened into one JSON
// object (mirroring serde's internally-tagged enum representation).
type Envelope struct {
	Type MessageType `json:"type"`

	ExecutionID *uuid.UUID `json:"execution_id,omitempty"`
	Pipeline    *Aqueduct  `json:"pipeline,omitempty"`
	Position    *int       `json:"position,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Event       *ProgressEvent `json:"event,omitempty"`
	StageName   string     `json:"stage_name,omitempty"`
	Payload     *StageOutputMessage `json:"payload,omitempty"`
	Message     string     `json:"message,omitempty"`
	ExecutorID  string     `json:"executor_id,omitempty"`
	Success     bool       `json:"success,omitempty"`
}

// ExecutionRequest builds the client->executor frame submitting a pipeline.
func ExecutionRequest(pipeline Aqueduct) Envelope {
	return Envelope{Type: TypeExecutionRequest, Pipeline: &pipeline}
}

// CancelRequest builds the client->executor frame cancelling an execution.
func CancelRequest(id uuid.UUID) Envelope {
	return Envelope{Type: TypeCancelRequest, ExecutionID: &id}
}

// ExecutionResponse acks a submission with its assigned id.
func ExecutionResponse(id uuid.UUID) Envelope {
	return Envelope{Type: TypeExecutionResponse, ExecutionID: &id}
}

// CancelResponse acks receipt of a CancelRequest, regardless of outcome.
func CancelResponse(id uuid.UUID) Envelope {
	return Envelope{Type: TypeCancelResponse, ExecutionID: &id}
}

// QueuePosition reports an execution's current place in the queue.
func QueuePosition(id uuid.UUID, position int) Envelope {
	return Envelope{Type: TypeQueuePosition, ExecutionID: &id, Position: &position}
}

// ProgressUpdate carries a percentage and a lifecycle event.
func ProgressUpdate(id uuid.UUID, progress int, event ProgressEvent) Envelope {
	return Envelope{Type: TypeProgressUpdate, ExecutionID: &id, Progress: &progress, Event: &event}
}

// StageOutput carries one frame of a chunked stage output stream.
func StageOutput(id uuid.UUID, stageName string, payload StageOutputMessage) Envelope {
	return Envelope{Type: TypeStageOutput, ExecutionID: &id, StageName: stageName, Payload: &payload}
}

// ExecutionSucceeded marks a terminal successful outcome.
func ExecutionSucceeded(id uuid.UUID) Envelope {
	return Envelope{Type: TypeExecutionSucceeded, ExecutionID: &id}
}

// ExecutionError marks a terminal failed outcome.
func ExecutionError(id uuid.UUID, message string) Envelope {
	return Envelope{Type: TypeExecutionError, ExecutionID: &id, Message: message}
}

// RegisterExecutor is the managed-mode handshake frame sent by the executor.
func RegisterExecutor(executorID string) Envelope {
	return Envelope{Type: TypeRegisterExecutor, ExecutorID: executorID}
}

// RegistrationResponse is the orchestrator's reply to RegisterExecutor.
func RegistrationResponse(success bool, message string) Envelope {
	return Envelope{Type: TypeRegistrationResponse, Success: success, Message: message}
}

// Decode parses a single JSON text frame into an Envelope, validating that
// the fields required by its Type are present.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case TypeExecutionRequest:
		if env.Pipeline == nil {
			return Envelope{}, fmt.Errorf("execution_request missing pipeline")
		}
	case TypeCancelRequest:
		if env.ExecutionID == nil {
			return Envelope{}, fmt.Errorf("cancel_request missing execution_id")
		}
	case TypeExecutionResponse, TypeCancelResponse, TypeQueuePosition, TypeProgressUpdate,
		TypeStageOutput, TypeExecutionSucceeded, TypeExecutionError:
		if env.ExecutionID == nil {
			return Envelope{}, fmt.Errorf("%s missing execution_id", env.Type)
		}
	case TypeRegistrationResponse, TypeRegisterExecutor:
		// no required fields beyond what zero-values already satisfy
	default:
		return Envelope{}, fmt.Errorf("unknown frame type %q", env.Type)
	}
	return env, nil
}
