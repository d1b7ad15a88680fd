package internal

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptContextIsCancelledBySIGTERM(t *testing.T) {
	ctx, stop := interruptContext()
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestParseDate(t *testing.T) {
	fallback := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := parseDate("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = parseDate("2024-02-15", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("15/02/2024", fallback)
	assert.Error(t, err)
}
