package collector

import (
	"context"
	"time"

	"github.com/jing2uo/quantlab/model"
	"golang.org/x/time/rate"
)

// Limited 给数据源加上限速与单次超时
type Limited struct {
	src     Source
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited rps <= 0 不限速, timeout <= 0 不设超时
func NewLimited(src Source, rps float64, timeout time.Duration) *Limited {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if rps > 1 {
			burst = int(rps)
		}
	}
	return &Limited{
		src:     src,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (l *Limited) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Limited) Symbols(ctx context.Context, category string) ([]string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.src.Symbols(ctx, category)
}

func (l *Limited) Fetch(ctx context.Context, category, symbol string) (*model.Frame, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	f, err := l.src.Fetch(ctx, category, symbol)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return nil, &TransientSourceError{Category: category, Symbol: symbol, Err: err}
	}
	return f, err
}

// Unwrap 返回被包装的数据源
func (l *Limited) Unwrap() Source { return l.src }
