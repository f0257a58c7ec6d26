package tlsutil_test

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/pkg/testutil"
	"github.com/bibbank/trust-engine/pkg/tlsutil"
)

func TestGeneratedCertificatesLoad(t *testing.T) {
	certs := testutil.GenerateCerts(t, "localhost", "127.0.0.1")

	server, err := tlsutil.ServerConfig(certs.Cert, certs.Key)
	require.NoError(t, err)
	assert.Len(t, server.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), server.MinVersion)

	client, err := tlsutil.ClientConfig(certs.CA)
	require.NoError(t, err)
	assert.NotNil(t, client.RootCAs)

	creds, err := tlsutil.ServerCredentials(certs.Cert, certs.Key)
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)
}

func TestClientConfig_SystemPool(t *testing.T) {
	client, err := tlsutil.ClientConfig("")
	require.NoError(t, err)
	assert.Nil(t, client.RootCAs)
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))

	_, err := tlsutil.ServerConfig(garbage, garbage)
	assert.ErrorContains(t, err, "load server key pair")

	_, err = tlsutil.ClientConfig(garbage)
	assert.ErrorContains(t, err, "no CA certificate")

	_, err = tlsutil.ClientConfig(filepath.Join(dir, "missing.pem"))
	assert.ErrorContains(t, err, "read CA file")
}
