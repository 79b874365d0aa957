package lg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	ctx := Attach(context.Background(), Discard)
	assert.Equal(t, Discard, FromContext(ctx))

	_, ok := FromContext(context.Background()).(defaultLogger)
	assert.True(t, ok, "expected fallback logger when none attached")
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "", flatten())
	got := flatten(String("step", "pull"), Int("exit", 2), Bool("dry_run", true))
	assert.Contains(t, got, "pull")
	assert.Contains(t, got, "2")
	assert.Contains(t, got, "true")
}

func TestNewConsoleLogger(t *testing.T) {
	logger := New(&Config{ServiceName: "rdeploy", Format: "console"})
	assert.NotNil(t, logger)
	logger.With(String("run", "x")).Debug("not shown at info level")
}
