package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineIsolatesFailures(t *testing.T) {
	p := NewPipeline[string, int](WithConcurrency(3))

	var consumed atomic.Int64
	res, err := p.Run(context.Background(),
		[]string{"a", "bad", "c", "boom", "e"},
		func(_ context.Context, in string) ([]int, error) {
			switch in {
			case "bad":
				return nil, errors.New("source unavailable")
			case "boom":
				panic("unexpected")
			}
			return []int{1, 2}, nil
		},
		func(rows []int) error {
			consumed.Add(int64(len(rows)))
			return nil
		},
	)
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalItems)
	assert.EqualValues(t, 3, res.ProcessedItems)
	assert.EqualValues(t, 6, res.OutputRows)
	assert.EqualValues(t, 6, consumed.Load())
	assert.Equal(t, "3/5", res.Progress())
	require.Len(t, res.Errors, 2)
	assert.True(t, res.HasErrors())
	assert.Contains(t, res.ErrorSummary(), "2 errors")

	inputs := map[string]bool{}
	for _, e := range res.Errors {
		var item *ItemError
		require.True(t, errors.As(e, &item))
		inputs[item.Input] = true
	}
	assert.Equal(t, map[string]bool{"bad": true, "boom": true}, inputs)
}

func TestPipelineStopsBetweenInputsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline[int, int](WithConcurrency(1))

	res, err := p.Run(ctx, []int{1, 2, 3},
		func(_ context.Context, in int) ([]int, error) {
			cancel()
			return []int{in}, nil
		},
		nil,
	)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.ProcessedItems, int64(3))
}

func TestPipelineEmptyInput(t *testing.T) {
	res, err := NewPipeline[int, int]().Run(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, res.HasErrors())
	assert.Empty(t, res.ErrorSummary())
}
