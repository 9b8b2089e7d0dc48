package mqttv5

import (
	"errors"
	"time"
)

// Event handler function type.
type EventHandler func(client *Client, event error)

// Sentinel events for client lifecycle - check with errors.Is().
var (
	// ErrConnected is emitted when the client successfully connects.
	ErrConnected = errors.New("connected")

	// ErrDisconnected is emitted when the client disconnects gracefully.
	ErrDisconnected = errors.New("disconnected")

	// ErrConnectionLost is emitted when the connection is lost unexpectedly.
	ErrConnectionLost = errors.New("connection lost")

	// ErrReconnecting is emitted when the client is attempting to reconnect.
	ErrReconnecting = errors.New("reconnecting")

	// ErrReconnectFailed is emitted when all reconnection attempts have failed.
	ErrReconnectFailed = errors.New("reconnect failed")
)

// Sentinel errors for authentication - check with errors.Is().
var (
	// ErrAuthFailed is returned when authentication fails.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotAuthorized is returned when the client is not authorized for an operation.
	ErrNotAuthorized = errors.New("not authorized")
)

// Sentinel errors for protocol issues - check with errors.Is().
var (
	// ErrProtocolError is returned when a protocol violation occurs.
	ErrProtocolError = errors.New("protocol error")

	// ErrServerDisconnect is emitted when the server sends a DISCONNECT packet.
	ErrServerDisconnect = errors.New("server disconnect")

	// ErrKeepAliveTimeout names a keep-alive timeout. The client does not emit
	// it: a read that passes its deadline, or a PINGREQ that cannot be written,
	// is reported as a connection-lost error.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// Sentinel errors for operations - check with errors.Is().
var (
	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("unsubscribe failed")

	// ErrClientClosed is returned when an operation is attempted on a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidTopic is returned when a topic is invalid.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrTooManySubscriptions is returned when a subscribe would exceed the
	// configured subscription limit.
	ErrTooManySubscriptions = errors.New("too many subscriptions")

	// ErrWildcardSubNotSupported is returned when the server does not support
	// wildcard subscriptions but a filter uses wildcards.
	ErrWildcardSubNotSupported = errors.New("wildcard subscriptions not supported by server")

	// ErrSharedSubNotSupported is returned when the server does not support
	// shared subscriptions but a filter uses the shared subscription syntax.
	ErrSharedSubNotSupported = errors.New("shared subscriptions not supported by server")

	// ErrRetainNotSupported is returned when publishing a retained message to
	// a server that does not support retained messages.
	ErrRetainNotSupported = errors.New("retained messages not supported by server")

	// ErrQoSNotSupported is returned when publishing at a QoS level higher than
	// the server's advertised maximum.
	ErrQoSNotSupported = errors.New("QoS level not supported by server")
)

// Sentinel errors for endpoint resolution and the reconnect supervisor -
// check with errors.Is().
var (
	// ErrHostNotFound is returned when no broker endpoints are configured or
	// parseable.
	ErrHostNotFound = errors.New("host not found")

	// ErrOperationAborted is returned when a pending operation's context is
	// canceled before it completes.
	ErrOperationAborted = errors.New("operation aborted")

	// ErrTryAgain is returned when endpoint resolution wraps past the end of
	// the server list without a successful DNS resolution, or when a connect
	// attempt fails with a retriable reason code.
	ErrTryAgain = errors.New("try again")

	// ErrTimedOut is returned when resolving or connecting to an endpoint
	// exceeds its deadline.
	ErrTimedOut = errors.New("timed out")

	// ErrAccessDenied is returned when the server rejects a connection with a
	// non-retriable reason code.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoRecovery is emitted, wrapped together with ErrReconnectFailed, when
	// the reconnect loop stops on an error that retrying cannot resolve
	// (ErrHostNotFound, ErrAuthFailed or ErrAccessDenied).
	ErrNoRecovery = errors.New("no recovery possible")

	// ErrSessionExpired is returned when the broker reports SessionPresent=false
	// for a client that held session state, or when the session's expiry
	// interval has elapsed.
	ErrSessionExpired = errors.New("session expired")

	// ErrRetainNotAvailable is returned, wrapped together with
	// ErrRetainNotSupported, when Publish is asked to retain a message after
	// the server's CONNACK reported retained messages as not available.
	ErrRetainNotAvailable = errors.New("retained messages not available")

	// ErrTopicAliasMaximumReached names a full outbound topic alias space. The
	// client does not return it: it assigns no outbound topic aliases, and
	// TopicAliasManager.GetOrCreateOutbound reports a full space by returning 0.
	ErrTopicAliasMaximumReached = errors.New("topic alias maximum reached")

	// ErrPidOverrun is returned, wrapped together with ErrPacketIDExhausted,
	// when the packet ID allocator has no free IDs.
	ErrPidOverrun = errors.New("packet identifier space exhausted")
)

// ConnectedEvent contains details about a successful connection.
// Extract with errors.As().
type ConnectedEvent struct {
	err            error
	SessionPresent bool
	ServerProps    *Properties
}

func (e *ConnectedEvent) Error() string { return e.err.Error() }
func (e *ConnectedEvent) Unwrap() error { return e.err }

// NewConnectedEvent creates a new ConnectedEvent.
func NewConnectedEvent(sessionPresent bool, props *Properties) *ConnectedEvent {
	return &ConnectedEvent{
		err:            ErrConnected,
		SessionPresent: sessionPresent,
		ServerProps:    props,
	}
}

// DisconnectError contains details about a disconnection.
// Extract with errors.As().
type DisconnectError struct {
	err        error
	ReasonCode ReasonCode
	Properties *Properties
	Remote     bool // true if server sent disconnect
}

func (e *DisconnectError) Error() string {
	if e.Remote {
		return "server disconnect: " + e.ReasonCode.String()
	}
	return "disconnected: " + e.ReasonCode.String()
}

func (e *DisconnectError) Unwrap() error { return e.err }

// NewDisconnectError creates a new DisconnectError.
func NewDisconnectError(reason ReasonCode, props *Properties, remote bool) *DisconnectError {
	baseErr := ErrDisconnected
	if remote {
		baseErr = ErrServerDisconnect
	}
	return &DisconnectError{
		err:        baseErr,
		ReasonCode: reason,
		Properties: props,
		Remote:     remote,
	}
}

// ReconnectEvent contains details about a reconnection attempt.
// Extract with errors.As().
type ReconnectEvent struct {
	err         error
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	cancelFn    func()
}

func (e *ReconnectEvent) Error() string { return e.err.Error() }
func (e *ReconnectEvent) Unwrap() error { return e.err }

// Cancel stops further reconnection attempts.
func (e *ReconnectEvent) Cancel() {
	if e.cancelFn != nil {
		e.cancelFn()
	}
}

// NewReconnectEvent creates a new ReconnectEvent.
func NewReconnectEvent(attempt, maxAttempts int, delay time.Duration, cancelFn func()) *ReconnectEvent {
	return &ReconnectEvent{
		err:         ErrReconnecting,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Delay:       delay,
		cancelFn:    cancelFn,
	}
}

// PublishError contains details about a failed publish operation.
// Extract with errors.As().
type PublishError struct {
	err        error
	Topic      string
	PacketID   uint16
	ReasonCode ReasonCode
}

func (e *PublishError) Error() string {
	return "publish failed: " + e.ReasonCode.String()
}

func (e *PublishError) Unwrap() error { return e.err }

// NewPublishError creates a new PublishError.
func NewPublishError(topic string, packetID uint16, reason ReasonCode) *PublishError {
	return &PublishError{
		err:        ErrPublishFailed,
		Topic:      topic,
		PacketID:   packetID,
		ReasonCode: reason,
	}
}

// SubscribeError contains details about a failed subscribe operation.
// Extract with errors.As().
type SubscribeError struct {
	err        error
	Topic      string
	ReasonCode ReasonCode
}

func (e *SubscribeError) Error() string {
	return "subscribe failed: " + e.ReasonCode.String()
}

func (e *SubscribeError) Unwrap() error { return e.err }

// NewSubscribeError creates a new SubscribeError.
func NewSubscribeError(topic string, reason ReasonCode) *SubscribeError {
	return &SubscribeError{
		err:        ErrSubscribeFailed,
		Topic:      topic,
		ReasonCode: reason,
	}
}

// ConnectionLostError contains details about an unexpected disconnection.
// Extract with errors.As().
type ConnectionLostError struct {
	err   error
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

func (e *ConnectionLostError) Unwrap() error { return e.err }

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{
		err:   ErrConnectionLost,
		Cause: cause,
	}
}

// ConnectError contains details about a failed connection attempt.
// Extract with errors.As().
type ConnectError struct {
	err        error
	ReasonCode ReasonCode
	Properties *Properties
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReasonCode.String()
}

func (e *ConnectError) Unwrap() error { return e.err }

// NewConnectError creates a new ConnectError from a reason code, classifying
// it as retriable or fatal: only a handful of CONNACK reasons (server busy,
// unavailable, connection rate exceeded, or unspecified) describe a
// transient condition worth reconnecting for. Bad credentials are their
// own sentinel; every other >= 0x80 reason (banned, quota exceeded,
// malformed request, server moved, and so on) is fatal.
func NewConnectError(reason ReasonCode, props *Properties) *ConnectError {
	var baseErr error
	switch {
	case reason == ReasonBadUserNameOrPassword || reason == ReasonNotAuthorized:
		baseErr = ErrAuthFailed
	case reason.IsRetriableConnect():
		baseErr = ErrTryAgain
	default:
		baseErr = ErrAccessDenied
	}
	return &ConnectError{
		err:        baseErr,
		ReasonCode: reason,
		Properties: props,
	}
}
