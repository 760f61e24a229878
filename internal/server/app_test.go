package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/config"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.DatabaseDSN = "file:app_" + t.Name() + "?mode=memory&cache=shared"
	c.DisableMasterKeyFile = true
	return c
}

func TestOpenDeps(t *testing.T) {
	t.Setenv(common.MasterKeyEnvVar, cryptox.FormatKey(cryptox.GenerateKey()))
	ctx := context.Background()

	deps, err := OpenDeps(ctx, testConfig(t), logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.NoError(t, deps.Vault.SaveSecret(ctx, "u1", models.AIAPIKey, "sk-0123456789"))
	got, ok, err := deps.Vault.LoadSecret(ctx, "u1", models.AIAPIKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-0123456789", got)

	records, err := deps.Store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotContains(t, string(records[0].Fields[models.AIAPIKey]), "sk-0123456789")
}

func TestOpenDeps_NoMasterKey(t *testing.T) {
	t.Setenv(common.MasterKeyEnvVar, "")

	_, err := OpenDeps(context.Background(), testConfig(t), logging.Nop{})
	assert.ErrorIs(t, err, vault.ErrConfiguration)
}

func TestOpenDeps_BadDriver(t *testing.T) {
	t.Setenv(common.MasterKeyEnvVar, cryptox.FormatKey(cryptox.GenerateKey()))
	c := testConfig(t)
	c.DatabaseDriver = "oracle"

	_, err := OpenDeps(context.Background(), c, logging.Nop{})
	assert.Error(t, err)
}

func TestS3Settings(t *testing.T) {
	c := testConfig(t)
	st := S3Settings(c)

	assert.Equal(t, c.S3RootUser, st.AccessKey)
	assert.Equal(t, c.S3RootPassword, st.SecretKey)
	assert.Equal(t, c.S3Bucket, st.Bucket)
	assert.Equal(t, c.S3Region, st.Region)
	assert.Equal(t, c.S3BaseEndpoint, st.BaseEndpoint)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	t.Setenv(common.MasterKeyEnvVar, cryptox.FormatKey(cryptox.GenerateKey()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, testConfig(t), logging.Nop{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}
