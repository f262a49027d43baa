package tlsutil

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_AEADOnly(t *testing.T) {
	cfg := ClientConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)
	assert.False(t, cfg.InsecureSkipVerify)

	for _, cs := range cfg.CipherSuites {
		assert.Contains(t, aeadSuites, cs, "unexpected non-AEAD cipher suite: %d", cs)
	}
}

func TestClientConfig_ReturnsIndependentCopies(t *testing.T) {
	a := ClientConfig()
	a.CipherSuites[0] = 0
	b := ClientConfig()
	assert.NotEqual(t, uint16(0), b.CipherSuites[0])
}

func TestSecureHTTPClient(t *testing.T) {
	client := SecureHTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, client.Timeout)

	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.False(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestInsecureHTTPClient_TrustsSelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := SecureHTTPClient(5 * time.Second).Get(srv.URL)
	assert.Error(t, err, "self-signed certificate must be rejected by default")

	resp, err := InsecureHTTPClient(5 * time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServerConfig_MissingFiles(t *testing.T) {
	_, err := ServerConfig("/nonexistent/cert.pem", "/nonexistent/key.pem")
	assert.Error(t, err)
}
