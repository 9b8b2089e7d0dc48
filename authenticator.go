package mqttv5

import "context"

// AuthStep identifies which leg of an enhanced authentication exchange an
// Authenticator is being asked to produce data for.
type AuthStep int

const (
	// AuthStepClientInitial is the first message the client sends, carried in
	// the CONNECT packet's Authentication Data property.
	AuthStepClientInitial AuthStep = iota

	// AuthStepServerChallenge is a server-sent AUTH packet with reason code
	// ContinueAuthentication; data is the server's challenge, the returned
	// bytes become the client's response AUTH packet.
	AuthStepServerChallenge

	// AuthStepServerFinal is the server's last message, carried either in the
	// CONNACK that completes the exchange or in an AUTH packet with reason
	// Success that completes a re-authentication; data may be used to verify
	// the server without producing a response.
	AuthStepServerFinal
)

// String implements fmt.Stringer.
func (s AuthStep) String() string {
	switch s {
	case AuthStepClientInitial:
		return "client-initial"
	case AuthStepServerChallenge:
		return "server-challenge"
	case AuthStepServerFinal:
		return "server-final"
	default:
		return "unknown"
	}
}

// Authenticator implements an enhanced (SASL-style) authentication method
// exchanged over CONNECT/CONNACK/AUTH packets' Authentication Method and
// Authentication Data properties.
//
// Method identifies the mechanism, sent verbatim as the Authentication
// Method property. Auth is called once per leg of the exchange with the
// peer's last Authentication Data (empty on AuthStepClientInitial) and
// returns the bytes to carry in the client's next packet, or an error to
// abort the exchange.
type Authenticator interface {
	Method() string
	Auth(ctx context.Context, step AuthStep, data []byte) ([]byte, error)
}

// nullAuthenticator is the zero-value Authenticator; an empty Method means
// enhanced authentication is not in use, and connect() skips the exchange
// entirely rather than calling Auth.
type nullAuthenticator struct{}

func (nullAuthenticator) Method() string { return "" }

func (nullAuthenticator) Auth(context.Context, AuthStep, []byte) ([]byte, error) {
	return nil, nil
}
