package relay

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ChatAPIOffloaded runs ChatAPI on a dedicated goroutine and joins its result.
// It behaves exactly like ChatAPI; callers that must not perform blocking I/O
// on their own goroutine use it instead.
func (s *Service) ChatAPIOffloaded(ctx context.Context, url, body string) (string, error) {
	var (
		g    errgroup.Group
		text string
	)
	g.Go(func() error {
		var err error
		text, err = s.ChatAPI(ctx, url, body)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return text, nil
}
