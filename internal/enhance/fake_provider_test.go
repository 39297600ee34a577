package enhance

import (
	"context"
	"time"

	"craskill/internal/provider"
)

// fakeClient is a test double satisfying provider.Client without touching
// any real backend, following the teacher's fakes-over-mocking-frameworks
// test convention.
type fakeClient struct {
	id        string
	available bool
	response  string
	err       error
	maxChunk  int
}

func (f *fakeClient) ID() string { return f.id }

func (f *fakeClient) Available(ctx context.Context) bool { return f.available }

func (f *fakeClient) MaxChunkSize() int {
	if f.maxChunk == 0 {
		return 1 << 20
	}
	return f.maxChunk
}

func (f *fakeClient) Timeout(promptChars int) time.Duration { return time.Minute }

func (f *fakeClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

var _ provider.Client = (*fakeClient)(nil)
