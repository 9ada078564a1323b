package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/meetmesh/core"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks are executed synchronously and can influence execution flow by
// returning errors that terminate the operation.
type CallbackType string

const (
	// CallbackMeetingCreated is triggered after a meeting has been registered.
	// Returning an error unregisters the meeting again.
	CallbackMeetingCreated CallbackType = "meeting_created"

	// CallbackEvent is triggered for every event before it is streamed.
	// Returning an error stops the drive.
	CallbackEvent CallbackType = "event"

	// CallbackHumanInput is triggered after human input has been accepted.
	CallbackHumanInput CallbackType = "human_input"

	// CallbackMeetingEnded is triggered once a meeting reached Ended.
	CallbackMeetingEnded CallbackType = "meeting_ended"
)

// CallbackContext carries what a callback may inspect.
type CallbackContext struct {
	// MeetingID identifies the meeting.
	MeetingID string

	// Event is the event being streamed; nil for non-event callbacks.
	Event *core.Event

	// Participant is set for human input callbacks.
	Participant string

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for lifecycle hooks.
//
// Implementations should be fast: event callbacks run on the streaming path
// and block it while they execute.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackHumanInput,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("input from %s in %s", cc.Participant, cc.MeetingID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of callbacks used by the Engine.
//
// Callbacks are executed in registration order, and any callback returning
// an error prevents subsequent callbacks from running. Registration and
// execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Has reports whether any callback is registered for the type.
func (cm *CallbackManager) Has(callbackType CallbackType) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[callbackType]) > 0
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}
	return nil
}

// LoggingCallback forwards lifecycle points to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackMeetingEnded, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute formats the callback context into a single line.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	msg := fmt.Sprintf("%s meeting=%s", cc.CallbackType, cc.MeetingID)
	if cc.Participant != "" {
		msg += " participant=" + cc.Participant
	}
	if cc.Event != nil {
		msg += fmt.Sprintf(" event=%s round=%d", cc.Event.Type, cc.Event.Round)
		if cc.Event.Speaker != "" {
			msg += " speaker=" + cc.Event.Speaker
		}
	}
	c.logger(msg)
	return nil
}
