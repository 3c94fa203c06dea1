package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/clock"
	"github.com/brightcrawl/rqueue/internal/clock/manual"
	"github.com/brightcrawl/rqueue/internal/config"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

type testApp struct {
	cfg      config.Config
	registry *storageopen.Registry
	clk      clock.Clock
}

func (a *testApp) Close()                             {}
func (a *testApp) GetLogger() *zap.Logger              { return zap.NewNop() }
func (a *testApp) GetRegistry() *storageopen.Registry  { return a.registry }
func (a *testApp) GetClock() clock.Clock               { return a.clk }
func (a *testApp) GetConfig() config.Config            { return a.cfg }

func withTestApp(t *testing.T, dir string) {
	t.Helper()
	original := newApp
	newApp = func(_ context.Context) (App, error) {
		return &testApp{
			cfg: config.Config{
				LocalStorageDir:       dir,
				PersistStorage:        true,
				DefaultRequestQueueID: "default",
			},
			registry: storageopen.NewRegistry(),
			clk:      manual.New(time.Unix(0, 0)),
		}, nil
	}
	t.Cleanup(func() { newApp = original })
}

func TestAddThenFetchNextRoundTrips(t *testing.T) {
	withTestApp(t, t.TempDir())

	addRoot := newRootCmd()
	addOut := &bytes.Buffer{}
	addRoot.SetOut(addOut)
	addRoot.SetArgs([]string{"add", "--url", "https://example.com/a"})
	require.NoError(t, addRoot.ExecuteContext(context.Background()))

	fetchRoot := newRootCmd()
	fetchOut := &bytes.Buffer{}
	fetchRoot.SetOut(fetchOut)
	fetchRoot.SetArgs([]string{"fetch-next"})
	require.NoError(t, fetchRoot.ExecuteContext(context.Background()))
}

func TestMarkHandledRequiresIDAndUniqueKey(t *testing.T) {
	withTestApp(t, t.TempDir())

	root := newRootCmd()
	root.SetArgs([]string{"mark-handled"})
	err := root.ExecuteContext(context.Background())
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "flag"))
}
