package operator

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

func TestParseLineChannelCommand(t *testing.T) {
	ev, err := parseLine("0 charge")
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorEvent{ChannelID: 0, Tag: domain.OpCharge}, ev)
}

func TestParseLineSetIDRequiresBatteryID(t *testing.T) {
	_, err := parseLine("1 set_id")
	assert.Error(t, err)

	ev, err := parseLine("1 set_id AB12")
	require.NoError(t, err)
	assert.Equal(t, "AB12", ev.BatteryID)
}

func TestParseLineRejectsOversizedBatteryID(t *testing.T) {
	_, err := parseLine("1 set_id " + strings.Repeat("X", 33))
	assert.Error(t, err)
}

func TestParseLineBroadcastOnlyAllowsDisable(t *testing.T) {
	ev, err := parseLine("broadcast disable")
	require.NoError(t, err)
	assert.Equal(t, domain.Broadcast, ev.ChannelID)

	_, err = parseLine("broadcast charge")
	assert.Error(t, err)
}

func TestParseLineRejectsMalformedLine(t *testing.T) {
	_, err := parseLine("justonefield")
	assert.Error(t, err)

	_, err = parseLine("notanumber charge")
	assert.Error(t, err)
}

// TestRealSkipsBlankAndCommentLinesAndReportsParseErrors drives a Real
// source off a canned reader and checks blank lines and "#" comments are
// silently skipped, a malformed line is reported through onParseError
// without stopping the scan, and the well-formed lines surrounding it
// still come through in order.
func TestRealSkipsBlankAndCommentLinesAndReportsParseErrors(t *testing.T) {
	r := strings.NewReader("# a comment\n\n0 charge\nbadline\n1 discharge\n")
	var parseErrs []error
	src := NewReal(r, nil, func(err error) { parseErrs = append(parseErrs, err) })

	var got []domain.OperatorEvent
	for ev := range src.Events() {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, domain.OpCharge, got[0].Tag)
	assert.Equal(t, domain.OpDischarge, got[1].Tag)
	assert.Len(t, parseErrs, 1)
}

// TestRealCloseClosesTheUnderlyingCloser checks Close tears down both the
// done signal and the wired closer without panicking, even when nothing
// has been written to the source yet.
func TestRealCloseClosesTheUnderlyingCloser(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	src := NewReal(pr, pr, nil)
	require.NoError(t, src.Close())

	_, err := pw.Write([]byte("0 charge\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe, "the wired closer (the pipe's read end) must be closed")
}

func TestFakeSourceDeliversPushedEventsInOrder(t *testing.T) {
	f := NewFakeSource()
	f.Push(domain.OperatorEvent{ChannelID: 0, Tag: domain.OpCharge})
	f.Push(domain.OperatorEvent{ChannelID: 1, Tag: domain.OpDischarge})

	ev1 := <-f.Events()
	ev2 := <-f.Events()
	assert.Equal(t, domain.OpCharge, ev1.Tag)
	assert.Equal(t, domain.OpDischarge, ev2.Tag)

	require.NoError(t, f.Close())
	_, ok := <-f.Events()
	assert.False(t, ok)
}
