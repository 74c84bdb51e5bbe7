package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: CategoryUnclassified},
		{name: "plain error", err: base, want: CategoryUnclassified},
		{name: "user", err: UserError(base), want: CategoryUser},
		{name: "config", err: ConfigError(base), want: CategoryConfig},
		{name: "platform", err: PlatformError(base), want: CategoryPlatform},
		{name: "wrapped platform", err: fmt.Errorf("sink: %w", PlatformError(base)), want: CategoryPlatform},
		{name: "outermost wins", err: ConfigError(PlatformError(base)), want: CategoryConfig},
		{name: "validation", err: fmt.Errorf("%w: bad", ErrInvalidPayload), want: CategoryUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestResolvableError(t *testing.T) {
	base := errors.New("connection refused")
	err := PlatformError(base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "platform_error: connection refused", err.Error())
	assert.Equal(t, "user_error", (&ResolvableError{Category: CategoryUser}).Error())
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "unclassified", CategoryUnclassified.String())
	assert.Equal(t, "config_error", CategoryConfig.String())
	assert.Len(t, Categories, 4)
	assert.Equal(t, CategoryUser, Categories[0])
}
