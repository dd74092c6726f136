package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/crypto/schnorr"
	"github.com/allsmog/zkekyc-go/pkg/jwt"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/verifier"
)

func startVerifier(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer, err := jwt.NewES256Signer(key, "cli-test")
	require.NoError(t, err)

	store := storage.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	h := verifier.NewHandlers(store, curve.NewSecp256k1(), signer, verifier.Config{
		Issuer:   "cli-test",
		Audience: "cli-test",
		TokenTTL: time.Minute,
	})
	srv := httptest.NewServer(verifier.NewRouter(verifier.RouterConfig{
		Handlers:      h,
		TokenVerifier: jwt.NewVerifier(signer.JWKS(), "cli-test", "cli-test"),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

type cli struct {
	t      *testing.T
	global []string
}

func (c cli) run(args ...string) (int, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(append([]string{}, c.global...), args...), &stdout, &stderr)
	return code, stdout.String()
}

func TestCLI(t *testing.T) {
	t.Setenv("ZKEKYC_PASSPHRASE", "correct horse battery staple")
	c := cli{t: t, global: []string{"-server", startVerifier(t), "-state-dir", t.TempDir(), "-log-level", "error"}}

	code, out := c.run("status")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "not enrolled yet\n", out)

	code, out = c.run("login")
	assert.Equal(t, exitFailure, code)
	assert.Equal(t, "not enrolled yet\n", out)

	code, out = c.run("enroll", "-id", "001099000009", "-name", "Le Van C", "-dob", "03/03/1993", "-approved")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "enrolled as user")

	code, out = c.run("status")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "enrolled\n"+
		"  id hash:   "+schnorr.HashHex("001099000009")+"\n"+
		"  name hash: "+schnorr.HashHex("Le Van C")+"\n"+
		"  dob hash:  "+schnorr.HashHex("03/03/1993")+"\n", out)
	assert.NotContains(t, out, "001099000009")

	code, out = c.run("login", "-print-token")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "re-authenticated as user")

	code, out = c.run("reset")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "enrollment cleared\n", out)

	code, out = c.run("login")
	assert.Equal(t, exitFailure, code)
	assert.Equal(t, "not enrolled yet\n", out)
}

func TestCLIWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	global := []string{"-server", startVerifier(t), "-state-dir", dir, "-log-level", "error"}

	t.Setenv("ZKEKYC_PASSPHRASE", "first")
	code, out := cli{t: t, global: global}.run("enroll", "-id", "001099000010", "-name", "Pham D", "-dob", "04/04/1994")
	require.Equal(t, exitOK, code, out)

	t.Setenv("ZKEKYC_PASSPHRASE", "second")
	code, out = cli{t: t, global: global}.run("login")
	assert.Equal(t, exitFailure, code)
	assert.Equal(t, "re-authentication failed\n", out)
}

func TestCLIUsage(t *testing.T) {
	t.Setenv("ZKEKYC_PASSPHRASE", "x")
	c := cli{t: t, global: []string{"-state-dir", t.TempDir()}}

	code, _ := c.run()
	assert.Equal(t, exitUsage, code)

	code, _ = c.run("dance")
	assert.Equal(t, exitUsage, code)

	code, _ = c.run("enroll", "-name", "No ID")
	assert.Equal(t, exitUsage, code)
}

func TestCLIRequiresPassphrase(t *testing.T) {
	t.Setenv("ZKEKYC_PASSPHRASE", "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-state-dir", t.TempDir(), "status"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "ZKEKYC_PASSPHRASE")
}
