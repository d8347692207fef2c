package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/mbiss10/secure-aggregation/crypto"
	"github.com/mbiss10/secure-aggregation/protocol"
	"go.uber.org/atomic"
)

// ErrConnectionClosed is returned by Run when the relay connection ends
// before the round terminates.
var ErrConnectionClosed = errors.New("relay connection closed before round completed")

// Reporter is the optional audit side channel.
type Reporter interface {
	ReportInsecure(ctx context.Context, report *audit.InsecureReport) error
	ReportSecure(ctx context.Context, report *audit.SecureReport) error
}

// Client connects a participant to a relay over websockets. Run owns the
// participant state machine: inbound frames and locally submitted values
// are handled one at a time on the Run goroutine.
type Client struct {
	cfg        *protocol.ParticipantConfig
	log        *slog.Logger
	dispatcher *protocol.Dispatcher
	dialer     *websocket.Dialer
	reporter   Reporter

	values         chan *big.Int
	valueSubmitted atomic.Bool
	running        atomic.Bool
	reportTimeout  time.Duration

	mu     sync.RWMutex
	name   string
	status Status
}

// Status is a snapshot of the participant's progress. It never contains
// the private value.
type Status struct {
	Running        bool   `json:"running"`
	Name           string `json:"name,omitempty"`
	ID             string `json:"id,omitempty"`
	Phase          string `json:"phase"`
	Base           string `json:"base,omitempty"`
	Peers          int    `json:"peers"`
	ValueSubmitted bool   `json:"value_submitted"`
	ValueCollected bool   `json:"value_collected"`
	AwaitingValue  bool   `json:"awaiting_value"`
	Result         string `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
}

// New creates a client from cfg. A value configured in cfg is submitted as
// soon as Run starts.
func New(cfg *protocol.ParticipantConfig, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RelayURL == "" {
		return nil, errors.New("relay url is required")
	}
	if log == nil {
		log = slog.Default()
	}

	prng, err := cfg.PRNG()
	if err != nil {
		return nil, err
	}

	initial, err := cfg.PrivateValue()
	if err != nil {
		return nil, err
	}

	participant := protocol.NewParticipant(prng, log)
	c := &Client{
		cfg:           cfg,
		log:           log,
		dispatcher:    protocol.NewDispatcher(participant, log),
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		values:        make(chan *big.Int, 1),
		reportTimeout: 5 * time.Second,
		name:          cfg.Name,
	}
	c.refreshStatus()

	if initial != nil {
		if err := c.SubmitValue(initial); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SetReporter enables the audit side channel.
func (c *Client) SetReporter(r Reporter) {
	c.reporter = r
}

// SetName changes the display name sent to the audit side channel.
func (c *Client) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.status.Name = name
}

// SubmitValue supplies the private value. It may be called before or
// during Run, once per round. After Run returns, a value for the next round
// may be submitted.
func (c *Client) SubmitValue(v *big.Int) error {
	if v == nil {
		return protocol.ErrMissingPrivateValue
	}
	if !c.valueSubmitted.CompareAndSwap(false, true) {
		return protocol.ErrValueAlreadySet
	}

	c.values <- new(big.Int).Set(v)

	c.mu.Lock()
	c.status.ValueSubmitted = true
	c.mu.Unlock()
	return nil
}

// Status returns the current progress snapshot.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Running = c.running.Load()
	return s
}

// Run connects to the relay and takes part in one round. It returns the
// aggregation result, or an error if the round fails, the connection drops
// or ctx is cancelled first.
//
// Every call is a fresh round on a fresh connection: state left over from a
// previous Run is discarded, and each round needs its own SubmitValue.
func (c *Client) Run(ctx context.Context) (*big.Int, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, errors.New("client is already running")
	}
	defer c.running.Store(false)
	defer c.endRound()

	c.startRound()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.RelayURL, nil)
	if err != nil {
		c.fail(err)
		return nil, fmt.Errorf("dialing relay: %w", err)
	}
	defer conn.Close()

	c.log.Info("Connected to relay", "url", c.cfg.RelayURL)
	c.refreshStatus()

	done := make(chan struct{})
	defer close(done)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-done:
				return
			}
		}
	}()

	for {
		var (
			out [][]byte
			err error
		)

		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil, ctx.Err()

		case data, ok := <-frames:
			if !ok {
				err := <-readErr
				if res := c.dispatcher.Participant().Result(); res != nil {
					return res, nil
				}
				c.fail(ErrConnectionClosed)
				return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			out, err = c.dispatcher.Dispatch(data)

		case v := <-c.values:
			out, err = c.dispatcher.SubmitValue(v)
			if err == nil {
				c.reportInsecure(v)
			}
		}

		if err != nil {
			c.fail(err)
			return nil, err
		}

		for _, msg := range out {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.fail(err)
				return nil, fmt.Errorf("sending to relay: %w", err)
			}
		}

		c.afterEvent()

		if res := c.dispatcher.Participant().Result(); res != nil {
			c.log.Info("Round complete", "result", res.String())
			return res, nil
		}
	}
}

// startRound discards what a previous Run left in the participant. A value
// submitted since then is still queued and feeds the new round.
func (c *Client) startRound() {
	p := c.dispatcher.Participant()
	if p.Phase() == protocol.AwaitingBase && !p.HasPrivateValue() {
		return
	}

	c.log.Info("Starting new round", "previous_phase", p.Phase().String())
	p.Reset()

	c.mu.Lock()
	c.status = Status{Name: c.name}
	c.mu.Unlock()
	c.refreshStatus()
}

// endRound frees the value slot once the round has consumed the value, so
// the next round can take a new one.
func (c *Client) endRound() {
	if c.dispatcher.Participant().HasPrivateValue() {
		c.valueSubmitted.Store(false)
	}
	c.refreshStatus()
}

// afterEvent refreshes the status and fires the secure report once the
// masked value has been disclosed.
func (c *Client) afterEvent() {
	prev := c.Status().Phase
	c.refreshStatus()

	p := c.dispatcher.Participant()
	if p.Phase() == protocol.MaskedValueSent && prev != protocol.MaskedValueSent.String() {
		c.reportSecure(p)
	}
}

func (c *Client) refreshStatus() {
	p := c.dispatcher.Participant()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Name = c.name
	c.status.ID = p.ID()
	c.status.Phase = p.Phase().String()
	c.status.Peers = len(p.Peers())
	c.status.ValueSubmitted = c.valueSubmitted.Load()
	c.status.ValueCollected = p.HasPrivateValue()
	c.status.AwaitingValue = p.AwaitingPrivateValue()
	if base := p.Base(); base != nil {
		c.status.Base = base.String()
	}
	if res := p.Result(); res != nil {
		c.status.Result = res.String()
	}
	if err := p.Err(); err != nil {
		c.status.Error = err.Error()
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Error = err.Error()
}

func (c *Client) reportInsecure(v *big.Int) {
	if c.reporter == nil {
		return
	}
	report := &audit.InsecureReport{
		Name:          c.Status().Name,
		ParticipantID: c.dispatcher.Participant().ID(),
		Value:         new(big.Int).Set(v),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.reportTimeout)
		defer cancel()
		if err := c.reporter.ReportInsecure(ctx, report); err != nil {
			c.log.Warn("Audit report failed", "kind", "insecure", "err", err)
		}
	}()
}

func (c *Client) reportSecure(p *protocol.Participant) {
	if c.reporter == nil {
		return
	}
	members := append(p.Peers(), p.ID())
	report := &audit.SecureReport{
		Name:          c.Status().Name,
		ParticipantID: p.ID(),
		Fingerprint:   crypto.RoundFingerprint(p.Base(), members),
		MaskedValue:   p.MaskedValue(),
		Perturbations: p.SentPerturbations(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.reportTimeout)
		defer cancel()
		if err := c.reporter.ReportSecure(ctx, report); err != nil {
			c.log.Warn("Audit report failed", "kind", "secure", "err", err)
		}
	}()
}
