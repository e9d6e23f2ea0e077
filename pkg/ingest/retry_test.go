package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnmtech/verisynthos/pkg/store"
)

type alwaysFailSource struct{ *fakeSource }

func (alwaysFailSource) Download(ctx context.Context, entry Entry) ([]byte, error) {
	return nil, assertError{}
}

func TestRetryQueue_RecordsFailedIngestAfterMaxAttempts(t *testing.T) {
	pipeline, docs, _ := newTestPipeline()
	src := alwaysFailSource{newFakeSource()}
	queue := NewRetryQueue(pipeline, docs, 10)
	queue.MaxAttempts = 2

	entry := Entry{ID: "/broken.txt", Name: "broken.txt", MediaType: "text/plain"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)
	defer queue.Stop()

	queue.Enqueue(src, entry, store.Provenance{}, 0, "boom")

	require.Eventually(t, func() bool {
		return len(docs.FailedIngests()) == 1
	}, 20*time.Second, 50*time.Millisecond)

	failed := docs.FailedIngests()[0]
	assert.Equal(t, "broken.txt", failed.Name)
	assert.Equal(t, 2, failed.Attempts)
}

func TestRetryQueue_SucceedsOnRetryWithoutRecordingFailure(t *testing.T) {
	pipeline, docs, _ := newTestPipeline()
	src := newFakeSource()
	entry := Entry{ID: "/ok.txt", Name: "ok.txt", MediaType: "text/plain"}
	src.bodies[entry.ID] = []byte("this file will succeed on retry")

	queue := NewRetryQueue(pipeline, docs, 10)
	queue.MaxAttempts = 3

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)
	defer queue.Stop()

	queue.Enqueue(src, entry, store.Provenance{}, 0, "transient")

	require.Eventually(t, func() bool {
		doc, err := docs.GetDocument(context.Background(), DeriveDocumentID(HashBytes(src.bodies[entry.ID])))
		return err == nil && doc != nil
	}, 10*time.Second, 50*time.Millisecond)
	assert.Empty(t, docs.FailedIngests())
}

func TestBackoffWithJitter_GrowsAndCaps(t *testing.T) {
	small := backoffWithJitter(0)
	large := backoffWithJitter(20)
	assert.Less(t, small, large)
	assert.LessOrEqual(t, large, maxBackoff+maxBackoff/4)
}
