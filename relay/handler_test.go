package relay_test

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mbiss10/secure-aggregation/protocol"
	"github.com/mbiss10/secure-aggregation/relay"
	"github.com/mbiss10/secure-aggregation/testutil"
	"github.com/stretchr/testify/require"
)

func newRelayServer(t *testing.T, cfg *relay.Config) (*relay.Relay, *httptest.Server) {
	t.Helper()
	r, err := relay.New(cfg, testutil.DiscardLogger())
	require.NoError(t, err)

	router := chi.NewRouter()
	relay.NewHandler(r, testutil.DiscardLogger()).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return r, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return decode(t, data)
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := protocol.EncodeMessage(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHandlerSingleParticipantRound(t *testing.T) {
	_, srv := newRelayServer(t, testutil.NewTestRelayConfig(testutil.WithThreshold(1), testutil.WithBase(50)))
	conn := dial(t, srv)

	base := readMessage(t, conn).(*protocol.InitBaseParam)
	require.Equal(t, int64(50), base.Base.Int64())
	id := readMessage(t, conn).(*protocol.YourID).ID
	require.NotEmpty(t, id)

	writeMessage(t, conn, &protocol.Ready{})
	peers := readMessage(t, conn).(*protocol.UserIDBroadcast)
	require.Equal(t, []string{id}, peers.UserIDs)

	writeMessage(t, conn, &protocol.Perturbations{Perturbations: map[string]*big.Int{}})
	received := readMessage(t, conn).(*protocol.Perturbations)
	require.Empty(t, received.Perturbations)

	writeMessage(t, conn, &protocol.Value{Value: big.NewInt(42)})
	result := readMessage(t, conn).(*protocol.AggregationResult)
	require.Equal(t, int64(42), result.AggregationResult.Int64())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestHandlerIgnoresGarbage(t *testing.T) {
	r, srv := newRelayServer(t, testutil.NewTestRelayConfig(testutil.WithThreshold(2)))
	conn := dial(t, srv)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	writeMessage(t, conn, &protocol.Ready{})

	require.Eventually(t, func() bool { return r.Status().Ready == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestHandlerStatus(t *testing.T) {
	_, srv := newRelayServer(t, testutil.NewTestRelayConfig(testutil.WithThreshold(4), testutil.WithBase(11)))
	dial(t, srv)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/relay/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var status relay.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status.Connected == 1 && status.Threshold == 4 && status.Base == "11"
	}, 5*time.Second, 10*time.Millisecond)
}
