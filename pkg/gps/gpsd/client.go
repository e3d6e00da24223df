// Package gpsd reads position reports from a gpsd daemon.
package gpsd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"rallynav/pkg/config"
	"rallynav/pkg/gps"
)

const watchCommand = "?WATCH={\"enable\":true,\"json\":true}\n"

// tpvMessage is a gpsd time-position-velocity report.
type tpvMessage struct {
	Class  string  `json:"class"`
	Mode   int     `json:"mode"`
	Time   string  `json:"time"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt"`
	AltMSL float64 `json:"altMSL"`
	Track  float64 `json:"track"`
	Speed  float64 `json:"speed"` // m/s
	Eph    float64 `json:"eph"`
}

// Client implements gps.Client against a gpsd TCP socket.
type Client struct {
	addr           string
	reconnectDelay time.Duration
	staleAfter     time.Duration
	now            func() time.Time

	mu        sync.RWMutex
	connected bool
	fix       gps.Fix
	haveFix   bool
	received  time.Time
	conn      net.Conn
}

// NewClient creates a gpsd client. Nothing is dialled until Run.
func NewClient(cfg config.GPSDConfig) *Client {
	c := &Client{
		addr:           cfg.Address,
		reconnectDelay: cfg.ReconnectDelay.Std(),
		staleAfter:     cfg.StaleAfter.Std(),
		now:            time.Now,
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = 5 * time.Second
	}
	if c.staleAfter <= 0 {
		c.staleAfter = 5 * time.Second
	}
	return c
}

// Run connects and reads reports, reconnecting after failures, until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("gpsd connection failed, retrying", "address", c.addr, "error", err, "delay", c.reconnectDelay)
		} else {
			slog.Info("Connected to gpsd", "address", c.addr)
			c.read(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Disconnected from gpsd, reconnecting", "address", c.addr)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) read(ctx context.Context, conn net.Conn) {
	c.setConn(conn)
	defer c.setConn(nil)

	// Unblock the scanner on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		slog.Error("Failed to send gpsd watch command", "error", err)
		return
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if fix, ok := parseTPV(scanner.Bytes()); ok {
			c.mu.Lock()
			c.fix, c.haveFix, c.received = fix, true, c.now()
			c.mu.Unlock()
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Error("gpsd read error", "error", err)
	}
}

// parseTPV turns a report line into a fix. Only 2D and 3D fixes count.
func parseTPV(line []byte) (gps.Fix, bool) {
	var msg tpvMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return gps.Fix{}, false
	}
	if msg.Class != "TPV" || msg.Mode < 2 {
		return gps.Fix{}, false
	}

	// Prefer altMSL, fall back to Alt
	alt := msg.AltMSL
	if alt == 0 {
		alt = msg.Alt
	}
	fix := gps.Fix{
		Lat:      msg.Lat,
		Lon:      msg.Lon,
		Speed:    msg.Speed,
		Track:    msg.Track,
		Altitude: alt,
		Accuracy: msg.Eph,
	}
	if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
		fix.Time = t
	} else {
		fix.Time = time.Now()
	}
	return fix, true
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && conn == nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connected = conn != nil
}

// Latest returns the last fix if it arrived within the stale window.
func (c *Client) Latest(_ context.Context) (gps.Fix, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveFix || c.now().Sub(c.received) > c.staleAfter {
		return gps.Fix{}, gps.ErrNoFix
	}
	return c.fix, nil
}

// State reports the connection state.
func (c *Client) State() gps.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case !c.connected:
		return gps.StateDisconnected
	case c.haveFix && c.now().Sub(c.received) <= c.staleAfter:
		return gps.StateActive
	default:
		return gps.StateConnected
	}
}

// Close drops the current connection. Run reconnects unless its context is done.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close gpsd connection: %w", err)
	}
	return nil
}
