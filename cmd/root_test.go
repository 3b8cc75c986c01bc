package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/composureai/perfectstorm/internal/executor"
)

func TestGetExitCodeIsAlwaysFatal(t *testing.T) {
	assert.Equal(t, ExitCodeFatal, getExitCode(errors.New("bad flag")))
	assert.Equal(t, ExitCodeFatal, getExitCode(&executor.FatalError{Cause: errors.New("bad config")}))
}
