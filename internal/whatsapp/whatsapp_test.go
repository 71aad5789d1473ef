package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelly/hotelly/internal/apperr"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestMetaVerifyWebhookSignatureAccepts(t *testing.T) {
	p := NewMetaProvider("https://graph.test", "phone1", "token1")
	payload := []byte(`{"entry":[]}`)
	require.NoError(t, p.VerifyWebhookSignature(payload, sign("secret", payload), "secret"))
}

func TestMetaVerifyWebhookSignatureRejectsTampered(t *testing.T) {
	p := NewMetaProvider("https://graph.test", "phone1", "token1")
	payload := []byte(`{"entry":[]}`)
	err := p.VerifyWebhookSignature(payload, sign("secret", payload), "wrong-secret")
	assert.Error(t, err)
}

func TestMetaVerifyWebhookSignatureRejectsMalformedHeader(t *testing.T) {
	p := NewMetaProvider("https://graph.test", "phone1", "token1")
	err := p.VerifyWebhookSignature([]byte("{}"), "not-sha256", "secret")
	assert.Error(t, err)
}

func TestMetaParseInboundExtractsMessages(t *testing.T) {
	p := NewMetaProvider("https://graph.test", "phone1", "token1")
	payload := []byte(`{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "15551234567", "timestamp": "1700000000", "text": {"body": "hi"}}
		]}}]}]
	}`)
	msgs, err := p.ParseInbound(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "15551234567", msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Body)
}

func TestEvolutionParseInboundExtractsMessage(t *testing.T) {
	p := NewEvolutionProvider("https://evo.test", "instance1", "key1")
	payload := []byte(`{"data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net"},"message":{"conversation":"hello"},"messageTimestamp":1700000000}}`)
	msgs, err := p.ParseInbound(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "5511999990000@s.whatsapp.net", msgs[0].SenderID)
	assert.Equal(t, "hello", msgs[0].Body)
}

func TestEvolutionParseInboundIgnoresNonTextEvents(t *testing.T) {
	p := NewEvolutionProvider("https://evo.test", "instance1", "key1")
	msgs, err := p.ParseInbound([]byte(`{"data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRegistryGetUnknownProvider(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("unknown")
	assert.False(t, ok)
}

func TestSanitizeErrorForLogNeverLeaksMessage(t *testing.T) {
	err := apperr.Permanent(apperr.CodeProviderRejected, "rejected message to +5511999990000")
	got := sanitizeErrorForLog(err)
	assert.Contains(t, got, "code")
	assert.NotContains(t, got, "+55")
}
