package feed

import "context"

// Watch emits load's result once, then again after every signal on topic,
// until ctx is done. Load errors end the stream; the channel is closed on exit.
func Watch[T any](ctx context.Context, f Feed, topic string, load func(context.Context) (T, error)) (<-chan T, error) {
	signals, err := f.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	first, err := load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan T, 1)
	go func() {
		defer close(out)

		next := first
		for {
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			v, err := load(ctx)
			if err != nil {
				return
			}
			next = v
		}
	}()

	return out, nil
}
