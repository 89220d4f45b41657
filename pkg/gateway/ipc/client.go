// Package ipc implements the gateway.Client contract over a local agent
// socket. Messages are newline-delimited JSON frames: requests are matched to
// responses by id, and unsolicited event frames are fanned out on the
// notification channel for the event bridge.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

const (
	frameRequest  = "request"
	frameResponse = "response"
	frameEvent    = "event"
)

// frame is the single wire shape. Type selects which fields are meaningful.
type frame struct {
	Type string `json:"type"`

	// request / response
	ID     uint64          `json:"id,omitempty"`
	Op     string          `json:"op,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	// event
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (f frame) validate() error {
	switch f.Type {
	case frameResponse:
		if f.ID == 0 {
			return fmt.Errorf("ipc: response missing id")
		}
	case frameEvent:
		if f.Channel == "" {
			return fmt.Errorf("ipc: event missing channel")
		}
	case frameRequest:
		if f.ID == 0 || f.Op == "" {
			return fmt.Errorf("ipc: request missing id or op")
		}
	default:
		return fmt.Errorf("ipc: unknown frame type %q", f.Type)
	}
	return nil
}

// Client talks to the device agent over one connection. It satisfies
// gateway.Client. Safe for use from the orchestrator goroutine plus the
// cancellation paths; request writes are serialized internally.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan frame
	closed  bool

	notifs    chan gateway.Notification
	done      chan struct{}
	closeOnce sync.Once
}

var _ gateway.Client = (*Client)(nil)

// Dial connects to the agent socket and starts the read loop.
func Dial(ctx context.Context, network, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial agent socket")
	}
	slog.Info("agent_connected", "network", network, "addr", addr)
	return NewClient(conn), nil
}

// NewClient wraps an established connection. Ownership of conn passes to the
// client; Close tears it down.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		pending: make(map[uint64]chan frame),
		notifs:  make(chan gateway.Notification, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Notifications is the stream of out-of-band event frames. The channel is
// closed when the client shuts down, so consumers observe teardown
// structurally instead of racing it.
func (c *Client) Notifications() <-chan gateway.Notification {
	return c.notifs
}

// Close tears down the connection, fails all in-flight calls, and closes the
// notification channel.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()

		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	})
	return err
}

func (c *Client) readLoop() {
	dec := json.NewDecoder(c.conn)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			select {
			case <-c.done:
			default:
				slog.Error("agent_read_failed", "error", err)
			}
			c.Close()
			close(c.notifs)
			return
		}
		if err := f.validate(); err != nil {
			slog.Warn("agent_frame_invalid", "error", err)
			continue
		}

		switch f.Type {
		case frameResponse:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if !ok {
				// Response to a superseded call; the orchestrator has
				// already moved on.
				slog.Warn("agent_response_unmatched", "id", f.ID)
				continue
			}
			ch <- f
			close(ch)
		case frameEvent:
			select {
			case c.notifs <- gateway.Notification{Channel: f.Channel, Payload: f.Payload}:
			case <-c.done:
			default:
				slog.Warn("agent_event_dropped", "channel", f.Channel)
			}
		default:
			slog.Warn("agent_frame_unexpected", "type", f.Type)
		}
	}
}

// call issues one request and decodes the result into out (when non-nil).
func (c *Client) call(ctx context.Context, op string, params, out any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s params", op)
		}
		raw = b
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("ipc: client closed")
	}
	c.nextID++
	id := c.nextID
	respCh := make(chan frame, 1)
	c.pending[id] = respCh
	c.mu.Unlock()

	req := frame{Type: frameRequest, ID: id, Op: op, Params: raw}
	c.writeMu.Lock()
	err := c.enc.Encode(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return errors.Wrapf(err, "failed to send %s", op)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return fmt.Errorf("ipc: connection lost during %s", op)
		}
		if resp.Error != "" {
			return fmt.Errorf("ipc: %s rejected: %s", op, resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return errors.Wrapf(err, "failed to decode %s result", op)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return errors.Wrapf(ctx.Err(), "%s canceled", op)
	case <-c.done:
		return fmt.Errorf("ipc: client closed during %s", op)
	}
}

// callOutcome issues a request whose result is an authoritative outcome.
func (c *Client) callOutcome(ctx context.Context, op string, params any) (gateway.Outcome, error) {
	var out gateway.Outcome
	if err := c.call(ctx, op, params, &out); err != nil {
		return gateway.Outcome{}, err
	}
	if err := out.Validate(); err != nil {
		return gateway.Outcome{}, errors.Wrapf(err, "%s returned malformed outcome", op)
	}
	return out, nil
}

type portParams struct {
	Port string `json:"port"`
}

type flashParams struct {
	Port            string `json:"port"`
	HardwareVariant string `json:"hardware_variant"`
}

func (c *Client) DetectDevice(ctx context.Context) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "detect_device", nil)
}

func (c *Client) ScanCard(ctx context.Context) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "scan_card", nil)
}

func (c *Client) DetectBlank(ctx context.Context, port string) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "detect_blank", portParams{Port: port})
}

func (c *Client) WriteClone(ctx context.Context, req gateway.WriteRequest) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "write_clone", req)
}

func (c *Client) VerifyClone(ctx context.Context, req gateway.WriteRequest) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "verify_clone", req)
}

func (c *Client) HfAutopwn(ctx context.Context) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "hf_autopwn", nil)
}

func (c *Client) HfDump(ctx context.Context) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "hf_dump", nil)
}

func (c *Client) HfWriteClone(ctx context.Context, req gateway.HfWriteRequest) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "hf_write_clone", req)
}

func (c *Client) HfVerifyClone(ctx context.Context, req gateway.HfWriteRequest) (gateway.Outcome, error) {
	return c.callOutcome(ctx, "hf_verify_clone", req)
}

func (c *Client) CancelHfOperation(ctx context.Context) error {
	return c.call(ctx, "cancel_hf_operation", nil, nil)
}

func (c *Client) CheckFirmwareVersion(ctx context.Context, port string) (gateway.FirmwareCheck, error) {
	var check gateway.FirmwareCheck
	err := c.call(ctx, "check_firmware_version", portParams{Port: port}, &check)
	return check, err
}

func (c *Client) FlashFirmware(ctx context.Context, port, hardwareVariant string) error {
	return c.call(ctx, "flash_firmware", flashParams{Port: port, HardwareVariant: hardwareVariant}, nil)
}

func (c *Client) CancelFlash(ctx context.Context) error {
	return c.call(ctx, "cancel_flash", nil, nil)
}

func (c *Client) ResetWizard(ctx context.Context) error {
	return c.call(ctx, "reset_wizard", nil, nil)
}

func (c *Client) WizardAction(ctx context.Context, action gateway.Action) (gateway.Outcome, error) {
	if err := action.Validate(); err != nil {
		return gateway.Outcome{}, err
	}
	return c.callOutcome(ctx, "wizard_action", action)
}
