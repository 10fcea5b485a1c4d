package chat

import (
	"encoding/json"
	"testing"

	"facegram/service/metrics"
	errors "facegram/tools/errs"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientOf(t *testing.T) {
	cases := []struct {
		name         string
		sender       string
		participants []string
		want         string
		wantErr      bool
	}{
		{"pair", "A", []string{"A", "B"}, "B", false},
		{"pair reversed", "A", []string{"B", "A"}, "B", false},
		{"group", "A", []string{"A", "B", "C"}, "", true},
		{"sender missing", "A", []string{"B", "C"}, "", true},
		{"only sender", "A", []string{"A"}, "", true},
		{"self pair", "A", []string{"A", "A"}, "", true},
		{"empty", "A", nil, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RecipientOf(tc.sender, tc.participants)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.ErrConfiguration.Is(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRouter_DeliversVerbatimToRecipient(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn(), newFakeConn()
	r.Register("A", a)
	r.Register("B", b)
	m := metrics.New()
	router := NewRouter(r.Lookup, m, nil)

	payload := json.RawMessage(`{"senderId":"A","participants":["A","B"],"content":"hi","clientMsgId":"c-1"}`)
	out, err := router.Route("A", []string{"A", "B"}, payload)
	require.NoError(t, err)
	assert.Equal(t, RouteDelivered, out)

	evts := b.named(EventMessageDelivered)
	require.Len(t, evts, 1)
	assert.JSONEq(t, string(payload), string(evts[0].Data))
	assert.Empty(t, a.received(), "sender never receives its own message")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routing.WithLabelValues("delivered")))
}

func TestRouter_RecipientOffline(t *testing.T) {
	r := NewRegistry()
	a := newFakeConn()
	r.Register("A", a)
	m := metrics.New()
	router := NewRouter(r.Lookup, m, nil)

	out, err := router.Route("A", []string{"A", "B"}, json.RawMessage(`{"content":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, RouteDropped, out)
	assert.Empty(t, a.received())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routing.WithLabelValues("dropped")))
}

func TestRouter_SendFailureIsDrop(t *testing.T) {
	r := NewRegistry()
	b := newFakeConn()
	b.sendErr = ErrSendQueueFull
	r.Register("B", b)
	router := NewRouter(r.Lookup, nil, nil)

	out, err := router.Route("A", []string{"A", "B"}, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, RouteDropped, out)
}

func TestRouter_GroupIsConfigurationError(t *testing.T) {
	r := NewRegistry()
	b, c := newFakeConn(), newFakeConn()
	r.Register("B", b)
	r.Register("C", c)
	router := NewRouter(r.Lookup, nil, nil)

	_, err := router.Route("A", []string{"A", "B", "C"}, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.ErrConfiguration.Is(err))
	assert.Empty(t, b.received())
	assert.Empty(t, c.received())
}

func TestRouteOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", RouteDelivered.String())
	assert.Equal(t, "dropped", RouteDropped.String())
	assert.Equal(t, "unknown", RouteOutcome(0).String())
}
