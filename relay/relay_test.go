package relay_test

import (
	"testing"

	"github.com/mbiss10/secure-aggregation/metrics"
	"github.com/mbiss10/secure-aggregation/protocol"
	"github.com/mbiss10/secure-aggregation/relay"
	"github.com/mbiss10/secure-aggregation/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw []byte) protocol.Message {
	t.Helper()
	m, err := protocol.DecodeMessage(raw)
	require.NoError(t, err)
	return m
}

func TestRelayEndToEnd(t *testing.T) {
	tests := []struct {
		name   string
		base   int64
		values []int64
	}{
		{"three participants base 10", 10, []int64{2, 5, 9}},
		{"two participants base 100", 100, []int64{30, 45}},
		{"single participant", 7, []int64{12}},
		{"five participants", 1 << 30, []int64{1, 2, 3, 4, 1 << 29}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(len(tt.values)), testutil.WithBase(tt.base))
			h, err := testutil.NewHarness(cfg, len(tt.values))
			require.NoError(t, err)

			results, err := h.Run(tt.values...)
			require.NoError(t, err)

			want := testutil.SumMod(tt.base, tt.values...)
			for i, res := range results {
				require.NotNil(t, res, "participant %d has no result", i)
				assert.Equal(t, want, res.Int64())
				assert.Equal(t, protocol.Terminated, h.Participants[i].Phase())
				assert.True(t, h.Peers[i].Closed())
			}

			last, ok := h.Relay.LastResult()
			require.True(t, ok)
			assert.Equal(t, want, last.Sum.Int64())
			assert.Len(t, last.Members, len(tt.values))
			assert.Len(t, last.Fingerprint, 32)
		})
	}
}

func TestRelayLargeBase(t *testing.T) {
	base := "340282366920938463463374607431768211297"
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(3), testutil.WithBigBase(base))
	h, err := testutil.NewHarness(cfg, 3)
	require.NoError(t, err)

	results, err := h.Run(1, 2, 3)
	require.NoError(t, err)
	for _, res := range results {
		require.Equal(t, int64(6), res.Int64())
	}
}

func TestRelayJoinSendsBaseThenID(t *testing.T) {
	r, err := relay.New(testutil.NewTestRelayConfig(testutil.WithBase(97)), testutil.DiscardLogger())
	require.NoError(t, err)

	peer := &testutil.MemPeer{}
	id, err := r.Join(peer)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := peer.Drain()
	require.Len(t, msgs, 2)
	require.Equal(t, int64(97), decode(t, msgs[0]).(*protocol.InitBaseParam).Base.Int64())
	require.Equal(t, id, decode(t, msgs[1]).(*protocol.YourID).ID)
}

func TestRelayTurnsAwayWhenFull(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(2))
	h, err := testutil.NewHarness(cfg, 2)
	require.NoError(t, err)
	require.NoError(t, h.Pump())
	require.NoError(t, h.SubmitValue(0, 1))
	require.NoError(t, h.SubmitValue(1, 2))

	late := &testutil.MemPeer{}
	_, err = h.Relay.Join(late)
	require.ErrorIs(t, err, relay.ErrRoundFull)
	require.True(t, late.Closed())

	msgs := late.Drain()
	require.Len(t, msgs, 1)
	notice := decode(t, msgs[0]).(*protocol.Notice)
	require.Equal(t, relay.RoundFullNotice, notice.Message)
}

func TestRelayPeerSetWaitsForThreshold(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(3))
	h, err := testutil.NewHarness(cfg, 3)
	require.NoError(t, err)
	require.NoError(t, h.Pump())

	require.NoError(t, h.SubmitValue(0, 1))
	require.NoError(t, h.SubmitValue(1, 1))
	require.NoError(t, h.Pump())

	for i := 0; i < 2; i++ {
		require.Equal(t, protocol.AwaitingPeerSet, h.Participants[i].Phase())
	}
	status := h.Relay.Status()
	require.Equal(t, 2, status.Ready)
	require.False(t, status.Started)

	require.NoError(t, h.SubmitValue(2, 1))
	require.True(t, h.Relay.Status().Started)
}

func TestRelayReadyLeaveBeforeStart(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(2))
	h, err := testutil.NewHarness(cfg, 2)
	require.NoError(t, err)
	require.NoError(t, h.Pump())

	require.NoError(t, h.SubmitValue(0, 4))
	h.Disconnect(0)
	require.Equal(t, 0, h.Relay.Status().Ready)
	require.Equal(t, 1, h.Relay.Status().Connected)

	idx, err := h.Connect("replacement")
	require.NoError(t, err)
	require.NoError(t, h.Pump())
	require.NoError(t, h.SubmitValue(1, 5))
	require.NoError(t, h.SubmitValue(idx, 6))
	require.NoError(t, h.Pump())

	require.Equal(t, int64(11), h.Participants[1].Result().Int64())
	require.Equal(t, int64(11), h.Participants[idx].Result().Int64())
}

func TestRelayMemberLeaveAbortsRound(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(3))
	h, err := testutil.NewHarness(cfg, 3)
	require.NoError(t, err)
	require.NoError(t, h.Pump())
	for i := 0; i < 3; i++ {
		require.NoError(t, h.SubmitValue(i, int64(i)))
	}

	h.Disconnect(2)

	require.True(t, h.Peers[0].Closed())
	require.True(t, h.Peers[1].Closed())

	msgs := h.Peers[0].Drain()
	require.NotEmpty(t, msgs)
	require.Equal(t, protocol.TagUserIDBroadcast, decode(t, msgs[0]).Tag())
	require.Equal(t, protocol.TagNotice, decode(t, msgs[len(msgs)-1]).Tag())

	status := h.Relay.Status()
	require.Equal(t, uint64(1), status.Round)
	require.Zero(t, status.Connected)
	require.False(t, status.Started)
}

func TestRelayRejectsOutOfOrder(t *testing.T) {
	r, err := relay.New(testutil.NewTestRelayConfig(testutil.WithThreshold(2)), testutil.DiscardLogger())
	require.NoError(t, err)

	a, b := &testutil.MemPeer{}, &testutil.MemPeer{}
	idA, err := r.Join(a)
	require.NoError(t, err)
	idB, err := r.Join(b)
	require.NoError(t, err)

	err = r.Handle(idA, []byte(`{"type":"value","value":3}`))
	require.ErrorIs(t, err, protocol.ErrProtocolSequence)

	err = r.Handle(idA, []byte(`{"type":"perturbations","perturbations":{}}`))
	require.ErrorIs(t, err, protocol.ErrProtocolSequence)

	err = r.Handle(idA, []byte(`{"type":"your_id","id":"x"}`))
	require.ErrorIs(t, err, protocol.ErrProtocolSequence)

	err = r.Handle(idA, []byte(`{"type":"nope"}`))
	require.ErrorIs(t, err, protocol.ErrUnknownTag)

	err = r.Handle("stranger", []byte(`{"type":"ready"}`))
	require.ErrorIs(t, err, relay.ErrUnknownParticipant)

	require.NoError(t, r.Handle(idA, []byte(`{"type":"ready"}`)))
	err = r.Handle(idA, []byte(`{"type":"ready"}`))
	require.ErrorIs(t, err, protocol.ErrProtocolSequence)
	require.NoError(t, r.Handle(idB, []byte(`{"type":"ready"}`)))

	err = r.Handle(idA, []byte(`{"type":"perturbations","perturbations":{"someone-else":1}}`))
	require.ErrorIs(t, err, protocol.ErrDataConsistency)

	err = r.Handle(idA, []byte(`{"type":"perturbations","perturbations":{}}`))
	require.ErrorIs(t, err, protocol.ErrDataConsistency)

	// Masks must lie in [0, base); base is 1000 here.
	for _, mask := range []string{"1000", "-1", "123456789012345678901234567890"} {
		err = r.Handle(idA, []byte(`{"type":"perturbations","perturbations":{"`+idB+`":`+mask+`}}`))
		require.ErrorIs(t, err, protocol.ErrDataConsistency, mask)
	}
	require.NoError(t, r.Handle(idA, []byte(`{"type":"perturbations","perturbations":{"`+idB+`":999}}`)))
}

func TestRelayMetrics(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(2), testutil.WithBase(100))
	h, err := testutil.NewHarness(cfg, 2)
	require.NoError(t, err)

	m := metrics.NewRelayMetrics(prometheus.NewRegistry())
	h.Relay.SetMetrics(m)
	require.Equal(t, 2.0, promtest.ToFloat64(m.ConnectedPeers))

	require.Error(t, h.Relay.Handle(h.IDs[0], []byte(`not json`)))
	require.Error(t, h.Relay.Handle(h.IDs[0], []byte(`{"type":"value","value":1}`)))
	require.Equal(t, 1.0, promtest.ToFloat64(m.RejectedMessages.WithLabelValues("undecodable")))
	require.Equal(t, 1.0, promtest.ToFloat64(m.RejectedMessages.WithLabelValues("value")))

	_, err = h.Run(30, 45)
	require.NoError(t, err)
	require.Equal(t, 1.0, promtest.ToFloat64(m.RoundsCompleted))
	require.Zero(t, promtest.ToFloat64(m.ConnectedPeers))

	h, err = testutil.NewHarness(cfg, 2)
	require.NoError(t, err)
	h.Relay.SetMetrics(m)
	require.NoError(t, h.Pump())
	require.NoError(t, h.SubmitValue(0, 1))
	require.NoError(t, h.SubmitValue(1, 2))
	h.Disconnect(1)
	require.Equal(t, 1.0, promtest.ToFloat64(m.RoundsAborted))
}

func TestRelayOnResult(t *testing.T) {
	cfg := testutil.NewTestRelayConfig(testutil.WithThreshold(2), testutil.WithBase(100))
	h, err := testutil.NewHarness(cfg, 2)
	require.NoError(t, err)

	var got []relay.RoundResult
	h.Relay.OnResult(func(res relay.RoundResult) { got = append(got, res) })

	_, err = h.Run(30, 45)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(75), got[0].Sum.Int64())
	require.Equal(t, uint64(0), got[0].Round)
	require.Equal(t, uint64(1), h.Relay.Status().Round)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  relay.Config
		ok   bool
	}{
		{"valid", relay.Config{Threshold: 2, Base: "10"}, true},
		{"zero threshold", relay.Config{Threshold: 0, Base: "10"}, false},
		{"empty base", relay.Config{Threshold: 2}, false},
		{"negative base", relay.Config{Threshold: 2, Base: "-3"}, false},
		{"garbage base", relay.Config{Threshold: 2, Base: "ten"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
