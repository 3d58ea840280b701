package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

func TestOfferToUnregisteredChannelIsDropped(t *testing.T) {
	sink := NewFakeSink()
	r := NewRouter(sink, []int{0}, DefaultSampleQueueCap)

	r.Offer(domain.Record{ChannelID: 9, Kind: domain.KindFault})
	r.pump()

	assert.Empty(t, sink.Records())
}

// TestPumpSendsOneRecordPerChannelPerTick checks pump drains at most one
// record from each channel's queue on a single call, matching Run's "one
// record per channel per tick" contract — a channel with several queued
// records does not starve its siblings within one tick.
func TestPumpSendsOneRecordPerChannelPerTick(t *testing.T) {
	sink := NewFakeSink()
	r := NewRouter(sink, []int{0}, DefaultSampleQueueCap)

	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindFault, Payload: "f1"})
	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindFault, Payload: "f2"})

	r.pump()
	require.Len(t, sink.Records(), 1)
	assert.Equal(t, "f1", sink.Records()[0].Payload)

	r.pump()
	require.Len(t, sink.Records(), 2)
	assert.Equal(t, "f2", sink.Records()[1].Payload)
}

// TestPumpRetriesRejectedTransitionButDropsRejectedSample checks the
// asymmetric back-pressure policy: a rejected sample is gone for good,
// but a rejected transition/result/fault record is pushed back to the
// head of its queue and delivered on a later tick once the sink accepts
// again.
func TestPumpRetriesRejectedTransitionButDropsRejectedSample(t *testing.T) {
	sink := NewFakeSink()
	r := NewRouter(sink, []int{0}, DefaultSampleQueueCap)

	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindSample, Payload: "s1"})
	sink.RejectNext = 1
	r.pump()
	assert.Empty(t, sink.Records(), "a rejected sample is not retried")

	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindBCTransition, Payload: "t1"})
	sink.RejectNext = 1
	r.pump()
	assert.Empty(t, sink.Records(), "still rejected on this tick")

	r.pump()
	require.Len(t, sink.Records(), 1, "the transition survives to be retried on the next tick")
	assert.Equal(t, "t1", sink.Records()[0].Payload)
}

// TestPumpPreservesFIFOOrderWithinAChannel checks records drain in the
// order they were offered, transition retries aside.
func TestPumpPreservesFIFOOrderWithinAChannel(t *testing.T) {
	sink := NewFakeSink()
	r := NewRouter(sink, []int{0}, DefaultSampleQueueCap)

	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindFault, Payload: 1})
	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindFault, Payload: 2})
	r.Offer(domain.Record{ChannelID: 0, Kind: domain.KindFault, Payload: 3})

	for i := 0; i < 3; i++ {
		r.pump()
	}

	recs := sink.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []interface{}{1, 2, 3}, []interface{}{recs[0].Payload, recs[1].Payload, recs[2].Payload})
}
