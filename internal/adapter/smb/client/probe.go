package client

import (
	"context"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/telemetry"
)

// Step records one exchange of a probe.
type Step struct {
	Command  types.Command
	Duration time.Duration
	Err      error
}

// Report summarizes a probe against a server.
type Report struct {
	Address string
	Steps   []Step

	Dialect            string
	ServerCapabilities types.Capabilities
	ServerTime         time.Time
	ServerTimeZone     int16
	MaxBufferSize      uint32
	NativeOS           string
	NativeLanMan       string
	Service            string
	EchoData           []byte
	KeepAlives         int
}

// Completed reports whether every step succeeded.
func (r *Report) Completed() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// ProbeOptions tune what happens after the mandatory four steps.
type ProbeOptions struct {
	EchoData []byte

	// KeepAlives is the number of extra ECHOs sent once the handshake is
	// complete, spaced by KeepAliveInterval.
	KeepAlives        int
	KeepAliveInterval time.Duration
}

// Probe runs the handshake on c and records each step. It stops at the
// first failure, which is also returned.
func Probe(ctx context.Context, c *Client, opts ProbeOptions) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanProbe)
	defer span.End()

	rep := &Report{Address: c.conn.RemoteAddr().String()}

	step := func(cmd types.Command, fn func() error) error {
		start := time.Now()
		err := fn()
		rep.Steps = append(rep.Steps, Step{Command: cmd, Duration: time.Since(start), Err: err})
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		return err
	}

	if err := step(types.CommandNegotiate, func() error {
		resp, err := c.Negotiate(ctx)
		if err != nil {
			return err
		}
		if int(resp.DialectIndex) < len(c.cfg.Dialects) {
			rep.Dialect = c.cfg.Dialects[resp.DialectIndex]
		}
		rep.ServerCapabilities = resp.Capabilities
		rep.ServerTime = types.FiletimeToTime(resp.SystemTime)
		rep.ServerTimeZone = resp.ServerTimeZone
		rep.MaxBufferSize = resp.MaxBufferSize
		return nil
	}); err != nil {
		return rep, err
	}

	if err := step(types.CommandSessionSetupAndX, func() error {
		resp, err := c.SessionSetup(ctx, c.cfg.Capabilities&rep.ServerCapabilities)
		if err != nil {
			return err
		}
		rep.NativeOS = resp.NativeOS
		rep.NativeLanMan = resp.NativeLanMan
		return nil
	}); err != nil {
		return rep, err
	}

	if err := step(types.CommandTreeConnectAndX, func() error {
		resp, err := c.TreeConnect(ctx)
		if err != nil {
			return err
		}
		rep.Service = resp.Service
		return nil
	}); err != nil {
		return rep, err
	}

	if err := step(types.CommandEcho, func() error {
		resp, err := c.Echo(ctx, opts.EchoData)
		if err != nil {
			return err
		}
		rep.EchoData = resp.Data
		return nil
	}); err != nil {
		return rep, err
	}

	for i := 0; i < opts.KeepAlives; i++ {
		if opts.KeepAliveInterval > 0 {
			select {
			case <-ctx.Done():
				return rep, ctx.Err()
			case <-time.After(opts.KeepAliveInterval):
			}
		}
		if err := step(types.CommandEcho, func() error {
			_, err := c.Echo(ctx, opts.EchoData)
			return err
		}); err != nil {
			return rep, err
		}
		rep.KeepAlives++
	}

	span.SetAttributes(
		telemetry.SMBDialect(rep.Dialect),
		telemetry.SMBService(rep.Service),
		telemetry.SMBEchoCount(1+rep.KeepAlives),
	)
	return rep, nil
}
