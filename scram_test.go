package mqttv5

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/pbkdf2"
)

// scramServerStub performs the server half of a SCRAM exchange from a known
// password, standing in for a broker so SCRAMClientAuthenticator can be
// exercised end-to-end without a network.
type scramServerStub struct {
	hash       SCRAMHash
	password   string
	salt       []byte
	iterations int

	clientFirstBare string
	serverFirst     string
	authMessage     string
	serverKey       []byte
	storedKey       []byte
}

func newScramServerStub(hashType SCRAMHash, password string, salt []byte, iterations int) *scramServerStub {
	return &scramServerStub{hash: hashType, password: password, salt: salt, iterations: iterations}
}

func (s *scramServerStub) firstMessage(clientFirst string) string {
	gs2Stripped := clientFirst
	if idx := strings.Index(clientFirst, "n="); idx >= 0 {
		gs2Stripped = clientFirst[idx:]
	}
	s.clientFirstBare = gs2Stripped

	var clientNonce string
	for _, part := range strings.Split(gs2Stripped, ",") {
		if strings.HasPrefix(part, "r=") {
			clientNonce = part[2:]
		}
	}

	serverNonce := clientNonce + "server-extension"
	s.serverFirst = fmt.Sprintf("r=%s,s=%s,i=%d", serverNonce, base64.StdEncoding.EncodeToString(s.salt), s.iterations)
	return s.serverFirst
}

func (s *scramServerStub) finalMessage(clientFinal string) (string, bool) {
	hashFunc := s.hash.hashFunc()
	saltedPassword := pbkdf2.Key([]byte(s.password), s.salt, s.iterations, len(hashFunc().Sum(nil)), hashFunc)
	clientKey := hmacSum(hashFunc, saltedPassword, "Client Key")
	s.storedKey = hashSum(hashFunc, clientKey)
	s.serverKey = hmacSum(hashFunc, saltedPassword, "Server Key")

	var clientProofB64 string
	var withoutProof string
	if idx := strings.LastIndex(clientFinal, ",p="); idx >= 0 {
		withoutProof = clientFinal[:idx]
		clientProofB64 = clientFinal[idx+3:]
	}
	s.authMessage = fmt.Sprintf("%s,%s,%s", s.clientFirstBare, s.serverFirst, withoutProof)

	clientProof, err := base64.StdEncoding.DecodeString(clientProofB64)
	if err != nil {
		return "", false
	}
	clientSignature := hmacSum(hashFunc, s.storedKey, s.authMessage)
	recoveredKey := xorBytes(clientProof, clientSignature)
	computedStoredKey := hashSum(hashFunc, recoveredKey)
	if !hmac.Equal(computedStoredKey, s.storedKey) {
		return "", false
	}

	serverSignature := hmacSum(hashFunc, s.serverKey, s.authMessage)
	return fmt.Sprintf("v=%s", base64.StdEncoding.EncodeToString(serverSignature)), true
}

func TestSCRAMClientAuthenticatorFullExchange(t *testing.T) {
	for _, h := range []SCRAMHash{SCRAMHashSHA1, SCRAMHashSHA256, SCRAMHashSHA512} {
		t.Run(h.String(), func(t *testing.T) {
			const password = "correct-horse-battery-staple"
			salt := []byte("fixed-test-salt")
			server := newScramServerStub(h, password, salt, 4096)
			client := NewSCRAMClientAuthenticator(h, "alice", password)

			assert.Equal(t, h.String(), client.Method())

			clientFirst, err := client.Auth(context.Background(), AuthStepClientInitial, nil)
			require.NoError(t, err)
			assert.Contains(t, string(clientFirst), "n=alice")

			serverFirst := server.firstMessage(string(clientFirst))

			clientFinal, err := client.Auth(context.Background(), AuthStepServerChallenge, []byte(serverFirst))
			require.NoError(t, err)
			assert.Contains(t, string(clientFinal), "p=")

			serverFinal, ok := server.finalMessage(string(clientFinal))
			require.True(t, ok, "server must accept client proof")

			_, err = client.Auth(context.Background(), AuthStepServerFinal, []byte(serverFinal))
			assert.NoError(t, err)
		})
	}
}

func TestSCRAMClientAuthenticatorRejectsForgedServerFinal(t *testing.T) {
	const password = "correct-horse-battery-staple"
	salt := []byte("fixed-test-salt")
	server := newScramServerStub(SCRAMHashSHA256, password, salt, 4096)
	client := NewSCRAMClientAuthenticator(SCRAMHashSHA256, "alice", password)

	clientFirst, err := client.Auth(context.Background(), AuthStepClientInitial, nil)
	require.NoError(t, err)

	serverFirst := server.firstMessage(string(clientFirst))
	clientFinal, err := client.Auth(context.Background(), AuthStepServerChallenge, []byte(serverFirst))
	require.NoError(t, err)

	_, ok := server.finalMessage(string(clientFinal))
	require.True(t, ok)

	forged := "v=" + base64.StdEncoding.EncodeToString([]byte("not-the-real-signature-not-the-real-signature"))
	_, err = client.Auth(context.Background(), AuthStepServerFinal, []byte(forged))
	assert.ErrorIs(t, err, ErrSCRAMServerRejected)
}

func TestSCRAMClientAuthenticatorRejectsWrongPassword(t *testing.T) {
	salt := []byte("fixed-test-salt")
	server := newScramServerStub(SCRAMHashSHA256, "right-password", salt, 4096)
	client := NewSCRAMClientAuthenticator(SCRAMHashSHA256, "alice", "wrong-password")

	clientFirst, _ := client.Auth(context.Background(), AuthStepClientInitial, nil)
	serverFirst := server.firstMessage(string(clientFirst))
	clientFinal, err := client.Auth(context.Background(), AuthStepServerChallenge, []byte(serverFirst))
	require.NoError(t, err)

	_, ok := server.finalMessage(string(clientFinal))
	assert.False(t, ok, "server must reject proof computed from the wrong password")
}

func TestSCRAMClientAuthenticatorMalformedChallenge(t *testing.T) {
	client := NewSCRAMClientAuthenticator(SCRAMHashSHA256, "alice", "pw")
	_, err := client.Auth(context.Background(), AuthStepClientInitial, nil)
	require.NoError(t, err)

	_, err = client.Auth(context.Background(), AuthStepServerChallenge, []byte("not-a-scram-message"))
	assert.ErrorIs(t, err, ErrSCRAMProtocol)
}

func TestSCRAMClientAuthenticatorNonceMismatch(t *testing.T) {
	client := NewSCRAMClientAuthenticator(SCRAMHashSHA256, "alice", "pw")
	_, err := client.Auth(context.Background(), AuthStepClientInitial, nil)
	require.NoError(t, err)

	forged := fmt.Sprintf("r=%s,s=%s,i=4096", "totally-different-nonce", base64.StdEncoding.EncodeToString([]byte("salt")))
	_, err = client.Auth(context.Background(), AuthStepServerChallenge, []byte(forged))
	assert.ErrorIs(t, err, ErrSCRAMProtocol)
}

func TestSCRAMHashMethodNames(t *testing.T) {
	assert.Equal(t, "SCRAM-SHA-1", SCRAMHashSHA1.String())
	assert.Equal(t, "SCRAM-SHA-256", SCRAMHashSHA256.String())
	assert.Equal(t, "SCRAM-SHA-512", SCRAMHashSHA512.String())
}

func TestEscapeScramName(t *testing.T) {
	assert.Equal(t, "alice", escapeScramName("alice"))
	assert.Equal(t, "a=3Db=2Cc", escapeScramName("a=b,c"))
}
