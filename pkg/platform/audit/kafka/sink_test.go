package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"fortaudit/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() {}

func TestSinkAppend(t *testing.T) {
	fake := &fakeProducer{}
	sink := NewWithProducer(fake, "fortaudit.audit-trail")

	event := audit.Event{
		Action:     audit.ActionTransition,
		SessionID:  "sess-1",
		FromStatus: "submitted",
		ToStatus:   "reviewing",
	}
	require.NoError(t, sink.Append(context.Background(), event))

	require.Len(t, fake.records, 1)
	record := fake.records[0]
	assert.Equal(t, "fortaudit.audit-trail", record.Topic)
	assert.Equal(t, []byte("sess-1"), record.Key, "events partition by session")

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, audit.ActionTransition, decoded.Action)
	assert.Equal(t, "reviewing", decoded.ToStatus)
}

func TestSinkAppendSurfacesProduceErrors(t *testing.T) {
	fake := &fakeProducer{err: errors.New("broker down")}
	sink := NewWithProducer(fake, "fortaudit.audit-trail")

	err := sink.Append(context.Background(), audit.Event{SessionID: "sess-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
