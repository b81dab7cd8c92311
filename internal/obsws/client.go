package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/logger"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	requestTimeout   = 10 * time.Second

	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

var errClosed = errors.New("obsws: client closed")

// Client maintains a connection to an OBS instance over obs-websocket
// v5 and translates its input lifecycle into host.SourceEvents. It
// reconnects with backoff and resynchronizes the source list after
// every reconnect.
type Client struct {
	url      string
	password string
	log      *zerolog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan responseData
	nextID    atomic.Uint64

	// input kinds observed via events and resync, so settings changes
	// can be attributed to capture inputs without another round trip
	kindsMu sync.Mutex
	kinds   map[string]string

	events chan host.SourceEvent

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a client for the OBS instance at host:port. Call Start
// to begin connecting.
func New(obsHost string, port int, password string) *Client {
	return &Client{
		url:      fmt.Sprintf("ws://%s:%d", obsHost, port),
		password: password,
		log:      logger.WithComponent("obsws"),
		pending:  make(map[string]chan responseData),
		kinds:    make(map[string]string),
		events:   make(chan host.SourceEvent, 32),
		done:     make(chan struct{}),
	}
}

// Start launches the connection loop in the background.
func (c *Client) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
}

// Events returns the stream of source lifecycle events. The channel
// is closed when the client shuts down.
func (c *Client) Events() <-chan host.SourceEvent {
	return c.events
}

// Close stops the connection loop and waits for it to exit.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.done)
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	c.wg.Wait()
	return nil
}

func (c *Client) run() {
	defer close(c.events)

	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, err := c.connect()
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("OBS connection failed")
			select {
			case <-time.After(jitter(backoff)):
			case <-c.done:
				return
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.log.Info().Str("url", c.url).Msg("Connected to OBS")
		backoff = initialBackoff
		c.setConn(conn)

		pumpDone := make(chan struct{})
		go func() {
			c.readPump(conn)
			close(pumpDone)
		}()

		if err := c.resync(); err != nil {
			c.log.Warn().Err(err).Msg("Source list resync failed")
		}

		select {
		case <-c.done:
			conn.Close()
			<-pumpDone
			c.setConn(nil)
			return
		case <-pumpDone:
			c.setConn(nil)
			conn.Close()
			c.failPending()
			c.log.Warn().Msg("OBS connection lost, reconnecting")
		}
	}
}

// connect dials OBS and performs the Hello/Identify handshake
// synchronously, so a returned connection is ready for requests.
func (c *Client) connect() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return nil, err
	}

	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading hello: %w", err)
	}
	if msg.Op != opHello {
		conn.Close()
		return nil, fmt.Errorf("expected Hello, got op %d", msg.Op)
	}
	var hello helloData
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decoding hello: %w", err)
	}

	ident := identifyData{
		RPCVersion:         rpcVersion,
		EventSubscriptions: subInputs | subInputActiveStateChanged,
	}
	if hello.Authentication != nil {
		ident.Authentication = authResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	out, err := envelope(opIdentify, ident)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(out); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending identify: %w", err)
	}

	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading identify response: %w", err)
	}
	if msg.Op != opIdentified {
		conn.Close()
		return nil, fmt.Errorf("identify rejected (op %d)", msg.Op)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) write(msg message) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("obsws: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Op {
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(msg.D, &ev); err != nil {
				c.log.Warn().Err(err).Msg("Malformed event frame")
				continue
			}
			c.handleEvent(ev)
		case opRequestResponse:
			var resp responseData
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				c.log.Warn().Err(err).Msg("Malformed response frame")
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.RequestID]
			c.pendingMu.Unlock()
			if ok {
				select {
				case ch <- resp:
				default:
				}
			}
		}
	}
}

func (c *Client) handleEvent(ev eventData) {
	switch ev.EventType {
	case "InputCreated":
		var d struct {
			InputName            string         `json:"inputName"`
			InputKind            string         `json:"inputKind"`
			UnversionedInputKind string         `json:"unversionedInputKind"`
			InputSettings        map[string]any `json:"inputSettings"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil || d.InputName == enumInputName {
			return
		}
		kind := d.UnversionedInputKind
		if kind == "" {
			kind = d.InputKind
		}
		if !isCaptureKind(kind) {
			return
		}
		c.rememberKind(d.InputName, kind)
		c.emit(host.SourceEvent{
			Kind:      host.SourceCreated,
			Name:      d.InputName,
			TargetApp: targetFromSettings(kind, d.InputSettings),
		})

	case "InputRemoved":
		var d struct {
			InputName string `json:"inputName"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil || d.InputName == enumInputName {
			return
		}
		if c.forgetKind(d.InputName) {
			c.emit(host.SourceEvent{Kind: host.SourceRemoved, Name: d.InputName})
		}

	case "InputSettingsChanged":
		var d struct {
			InputName     string         `json:"inputName"`
			InputSettings map[string]any `json:"inputSettings"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil || d.InputName == enumInputName {
			return
		}
		kind, ok := c.kindOf(d.InputName)
		if !ok {
			return
		}
		// Re-registering an existing source just re-derives its target.
		c.emit(host.SourceEvent{
			Kind:      host.SourceCreated,
			Name:      d.InputName,
			TargetApp: targetFromSettings(kind, d.InputSettings),
		})

	case "InputActiveStateChanged":
		var d struct {
			InputName   string `json:"inputName"`
			VideoActive bool   `json:"videoActive"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil || d.InputName == enumInputName {
			return
		}
		kind := host.SourceDeactivated
		if d.VideoActive {
			kind = host.SourceActivated
		}
		c.emit(host.SourceEvent{Kind: kind, Name: d.InputName, Active: d.VideoActive})
	}
}

func (c *Client) emit(ev host.SourceEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// resync rebuilds the source picture after a (re)connect by walking the
// current input list. Inputs that vanished while disconnected are retired,
// and every surviving input's render state is re-read: a stale active
// source must not keep holding presence.
func (c *Client) resync() error {
	ctx := context.Background()

	var list struct {
		Inputs []struct {
			InputName            string `json:"inputName"`
			InputKind            string `json:"inputKind"`
			UnversionedInputKind string `json:"unversionedInputKind"`
		} `json:"inputs"`
	}
	if err := c.request(ctx, "GetInputList", nil, &list); err != nil {
		return err
	}

	seen := make(map[string]bool, len(list.Inputs))
	for _, in := range list.Inputs {
		kind := in.UnversionedInputKind
		if kind == "" {
			kind = in.InputKind
		}
		if in.InputName == enumInputName || !isCaptureKind(kind) {
			continue
		}
		seen[in.InputName] = true

		var settings struct {
			InputSettings map[string]any `json:"inputSettings"`
		}
		if err := c.request(ctx, "GetInputSettings", map[string]any{"inputName": in.InputName}, &settings); err != nil {
			c.log.Warn().Err(err).Str("input", in.InputName).Msg("Failed to read input settings")
			continue
		}
		c.rememberKind(in.InputName, kind)
		c.emit(host.SourceEvent{
			Kind:      host.SourceCreated,
			Name:      in.InputName,
			TargetApp: targetFromSettings(kind, settings.InputSettings),
		})

		var active struct {
			VideoActive bool `json:"videoActive"`
		}
		if err := c.request(ctx, "GetSourceActive", map[string]any{"sourceName": in.InputName}, &active); err == nil {
			kindEv := host.SourceDeactivated
			if active.VideoActive {
				kindEv = host.SourceActivated
			}
			c.emit(host.SourceEvent{Kind: kindEv, Name: in.InputName, Active: active.VideoActive})
		}
	}

	for _, name := range c.knownInputs() {
		if seen[name] {
			continue
		}
		c.forgetKind(name)
		c.log.Info().Str("input", name).Msg("Input removed while disconnected")
		c.emit(host.SourceEvent{Kind: host.SourceRemoved, Name: name})
	}
	return nil
}

// ListTargets enumerates the windows OBS can capture on this
// platform. It reads the capture kind's window property list from an
// existing capture input, or from a disabled throwaway input that is
// removed before returning.
func (c *Client) ListTargets(ctx context.Context) ([]host.Target, error) {
	kind := captureSourceKind()
	prop := captureTargetProperty(kind)

	name, temporary, err := c.enumInput(ctx, kind)
	if err != nil {
		return nil, err
	}
	if temporary {
		defer c.removeInput(name)
	}

	var props struct {
		PropertyItems []struct {
			ItemName    string `json:"itemName"`
			ItemEnabled bool   `json:"itemEnabled"`
			ItemValue   any    `json:"itemValue"`
		} `json:"propertyItems"`
	}
	req := map[string]any{"inputName": name, "propertyName": prop}
	if err := c.request(ctx, "GetInputPropertiesListPropertyItems", req, &props); err != nil {
		return nil, err
	}

	targets := make([]host.Target, 0, len(props.PropertyItems))
	for _, item := range props.PropertyItems {
		value, _ := item.ItemValue.(string)
		if value == "" || item.ItemName == "" || strings.EqualFold(item.ItemName, "none") {
			continue
		}
		targets = append(targets, host.Target{
			ID:        value,
			Title:     item.ItemName,
			AppName:   appNameFromTitle(item.ItemName),
			Suggested: isSuggestedApp(item.ItemName),
		})
	}
	return targets, nil
}

// enumInput returns the name of an input whose properties can be
// enumerated, creating a hidden temporary one when no capture input
// exists yet.
func (c *Client) enumInput(ctx context.Context, kind string) (name string, temporary bool, err error) {
	var list struct {
		Inputs []struct {
			InputName            string `json:"inputName"`
			InputKind            string `json:"inputKind"`
			UnversionedInputKind string `json:"unversionedInputKind"`
		} `json:"inputs"`
	}
	if err := c.request(ctx, "GetInputList", map[string]any{"inputKind": kind}, &list); err != nil {
		return "", false, err
	}
	for _, in := range list.Inputs {
		if in.InputName != enumInputName {
			return in.InputName, false, nil
		}
	}

	var scene struct {
		CurrentProgramSceneName string `json:"currentProgramSceneName"`
	}
	if err := c.request(ctx, "GetCurrentProgramScene", nil, &scene); err != nil {
		return "", false, err
	}
	create := map[string]any{
		"sceneName":        scene.CurrentProgramSceneName,
		"inputName":        enumInputName,
		"inputKind":        kind,
		"sceneItemEnabled": false,
	}
	if settings := enumSettings(kind); settings != nil {
		create["inputSettings"] = settings
	}
	if err := c.request(ctx, "CreateInput", create, nil); err != nil {
		return "", false, err
	}
	return enumInputName, true, nil
}

func (c *Client) removeInput(name string) {
	if err := c.request(context.Background(), "RemoveInput", map[string]any{"inputName": name}, nil); err != nil {
		c.log.Warn().Err(err).Str("input", name).Msg("Failed to remove temporary input")
	}
}

// request sends a request frame and waits for its correlated response.
func (c *Client) request(ctx context.Context, reqType string, data any, out any) error {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan responseData, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	msg, err := envelope(opRequest, requestData{RequestType: reqType, RequestID: id, RequestData: data})
	if err != nil {
		return err
	}
	if err := c.write(msg); err != nil {
		return err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if !resp.RequestStatus.Result {
			return fmt.Errorf("%s failed: %s (code %d)", reqType, resp.RequestStatus.Comment, resp.RequestStatus.Code)
		}
		if out != nil && len(resp.ResponseData) > 0 {
			return json.Unmarshal(resp.ResponseData, out)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: timed out waiting for response", reqType)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errClosed
	}
}

// failPending unblocks requests stranded by a dropped connection.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		var resp responseData
		resp.RequestID = id
		resp.RequestStatus.Comment = "connection lost"
		select {
		case ch <- resp:
		default:
		}
	}
}

func (c *Client) rememberKind(name, kind string) {
	c.kindsMu.Lock()
	c.kinds[name] = kind
	c.kindsMu.Unlock()
}

func (c *Client) forgetKind(name string) bool {
	c.kindsMu.Lock()
	defer c.kindsMu.Unlock()
	if _, ok := c.kinds[name]; !ok {
		return false
	}
	delete(c.kinds, name)
	return true
}

func (c *Client) knownInputs() []string {
	c.kindsMu.Lock()
	defer c.kindsMu.Unlock()
	names := make([]string, 0, len(c.kinds))
	for name := range c.kinds {
		names = append(names, name)
	}
	return names
}

func (c *Client) kindOf(name string) (string, bool) {
	c.kindsMu.Lock()
	defer c.kindsMu.Unlock()
	kind, ok := c.kinds[name]
	return kind, ok
}

func jitter(d time.Duration) time.Duration {
	f := float64(d) * (1 + (rand.Float64()*2-1)*jitterFactor)
	return time.Duration(f)
}
