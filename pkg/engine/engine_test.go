package engine

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybox-project/ybox/pkg/ybox"
)

func TestDetectHonorsOverrideEnvVar(t *testing.T) {
	t.Setenv("YBOX_CONTAINER_MANAGER", "/bin/true")
	bin, err := Detect()
	require.NoError(t, err)
	assert.Equal(t, "/bin/true", bin)
}

func TestDetectRejectsMissingOverride(t *testing.T) {
	t.Setenv("YBOX_CONTAINER_MANAGER", "/nonexistent/engine-binary")
	_, err := Detect()
	assert.Error(t, err)
}

func TestRunWrapsNonZeroExitAsEngineError(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	e := New(log, "/bin/false")
	_, err := e.Run(context.Background(), "unused")
	require.Error(t, err)
	typed, ok := ybox.AsTyped(err)
	require.True(t, ok)
	assert.Equal(t, ybox.KindEngine, typed.Kind)
}

func TestRunSucceedsAndCapturesOutput(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("/bin/echo not available")
	}
	log := logrus.NewEntry(logrus.New())
	e := New(log, "/bin/echo")
	out, err := e.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}
