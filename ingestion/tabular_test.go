package ingestion

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTabularData_SendsRowsInOrder(t *testing.T) {
	s := mock.NewMockSink()
	ing := newTestIngester(t, s,
		WithTabularPageSize(2),
		WithWaitAfterSend(true),
		WithFlushTimeout(10*time.Millisecond))

	rows := [][]any{
		{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}, {5, "e"},
	}
	err := ing.SendTabularData(context.Background(), slices.Values(rows), []string{"id", "name"}, core.Destination{Table: "people"})
	require.NoError(t, err)

	var sizes []int
	for _, c := range s.Calls() {
		sizes = append(sizes, len(c.Payloads))
	}
	// one wait per row, so each row becomes its own batch
	assert.Equal(t, []int{1, 1, 1, 1, 1}, sizes)

	got := received(s)
	require.Len(t, got, 5)
	for n, p := range got {
		assert.Equal(t, core.Payload{"id": rows[n][0], "name": rows[n][1]}, p)
	}
}

func TestSendTabularData_InvalidInput(t *testing.T) {
	s := mock.NewMockSink()
	ing := newTestIngester(t, s)
	ctx := context.Background()
	dest := core.Destination{Table: "people"}

	err := ing.SendTabularData(ctx, slices.Values([][]any{{1}}), nil, dest)
	assert.ErrorIs(t, err, core.ErrInvalidTabularData)
	assert.ErrorIs(t, err, core.ErrEmptyColumns)

	err = ing.SendTabularData(ctx, nil, []string{"id"}, dest)
	assert.ErrorIs(t, err, core.ErrInvalidTabularData)
	assert.ErrorIs(t, err, core.ErrNilRows)

	err = ing.SendTabularData(ctx, slices.Values([][]any{{map[string]any{}}}), []string{"id"}, dest)
	require.NoError(t, err)

	closeIngester(t, ing)
	assert.Equal(t, 1, s.PayloadCount())
}

func TestSendTabularData_BadRowKeepsEarlierRows(t *testing.T) {
	s := mock.NewMockSink()
	ing := newTestIngester(t, s, WithTabularPageSize(2))

	rows := [][]any{{1}, {2}, {3}, {4, "extra"}, {5}}
	err := ing.SendTabularData(context.Background(), slices.Values(rows), []string{"id"}, core.Destination{Table: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRowWidth)
	assert.Contains(t, err.Error(), "row 3")
	assert.Equal(t, core.CategoryUser, core.Classify(err))

	closeIngester(t, ing)
	got := received(s)
	require.Len(t, got, 3)
	for n, p := range got {
		assert.Equal(t, n+1, p["id"])
	}
}

func TestSendTabularData_AfterClose(t *testing.T) {
	ing := newTestIngester(t, mock.NewMockSink())
	closeIngester(t, ing)

	err := ing.SendTabularData(context.Background(), slices.Values([][]any{{1}}), []string{"id"}, core.Destination{})
	assert.ErrorIs(t, err, ErrIngesterClosed)
}
