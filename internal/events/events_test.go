package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

func decode(t *testing.T, msg string) (Event, map[string]any) {
	t.Helper()
	var e Event
	require.NoError(t, json.Unmarshal([]byte(msg), &e))
	var data map[string]any
	require.NoError(t, json.Unmarshal(e.Data, &data))
	return e, data
}

func TestHub_TopicAndFirehose(t *testing.T) {
	h := NewHub()
	jobA := h.Subscribe("job-a")
	jobB := h.Subscribe("job-b")
	all := h.Subscribe(Firehose)

	require.NoError(t, h.Publish(context.Background(), NewJobStart("job-a", 2)))

	e, data := decode(t, <-jobA)
	assert.Equal(t, TypeJobStart, e.Type)
	assert.Equal(t, "job-a", e.JobID)
	assert.EqualValues(t, 2, data["totalBoards"])

	e, _ = decode(t, <-all)
	assert.Equal(t, "job-a", e.JobID)

	select {
	case msg := <-jobB:
		t.Fatalf("job-b got %s", msg)
	default:
	}
}

func TestHub_DropsWhenSlow(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("j")
	for i := 0; i < 100; i++ {
		require.NoError(t, h.Publish(context.Background(), NewJobStart("j", i)))
	}
	assert.Len(t, ch, cap(ch))
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("j")
	assert.Equal(t, 1, h.Subscribers("j"))
	h.Unsubscribe("j", ch)
	assert.Equal(t, 0, h.Subscribers("j"))
	_, open := <-ch
	assert.False(t, open)
	// second unsubscribe is a no-op
	h.Unsubscribe("j", ch)
}

func TestPayloadShapes(t *testing.T) {
	p := domain.Posting{ID: "p1", JobID: "j1", BoardID: "indeed", Status: domain.PostingFailed, ErrorMessage: "form not found", RetryCount: 1}
	_, data := decode(t, NewPostingUpdate(p).Encode())
	assert.Equal(t, "indeed", data["boardId"])
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "form not found", data["errorMessage"])
	assert.NotContains(t, data, "externalUrl")

	e, data := decode(t, NewJobComplete("j1", domain.JobPartial, domain.Tally{Total: 2, Success: 1, Failed: 1}, 0.004).Encode())
	assert.Equal(t, TypeJobComplete, e.Type)
	assert.Equal(t, Version, e.Version)
	assert.Equal(t, "partial", data["overallStatus"])
	assert.EqualValues(t, 1, data["successCount"])
	assert.EqualValues(t, 2, data["totalCount"])
	assert.InDelta(t, 0.004, data["cost"], 1e-9)
}

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestFanout(t *testing.T) {
	broken := &recorder{err: errors.New("redis down")}
	ok := &recorder{}
	f := Fanout{broken, nil, ok}

	err := f.Publish(context.Background(), NewJobStart("j", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, broken.got, 1)
}

func TestRedisPublisher_Channel(t *testing.T) {
	p := NewRedisPublisher(nil, "")
	assert.Equal(t, "postjob:events:j1", p.Channel("j1"))
}
