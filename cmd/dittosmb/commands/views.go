package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/client"
	"github.com/marmos91/dittosmb/internal/cli/timeutil"
	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/history"
)

// probeResult is the structured form of a probe report. Step errors are
// flattened to strings so they survive JSON and YAML.
type probeResult struct {
	Address            string      `json:"address" yaml:"address"`
	Completed          bool        `json:"completed" yaml:"completed"`
	Dialect            string      `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	ServerCapabilities string      `json:"server_capabilities" yaml:"server_capabilities"`
	ServerTime         time.Time   `json:"server_time,omitzero" yaml:"server_time,omitempty"`
	ServerTimeZone     int16       `json:"server_time_zone" yaml:"server_time_zone"`
	MaxBufferSize      uint32      `json:"max_buffer_size" yaml:"max_buffer_size"`
	NativeOS           string      `json:"native_os,omitempty" yaml:"native_os,omitempty"`
	NativeLanMan       string      `json:"native_lan_man,omitempty" yaml:"native_lan_man,omitempty"`
	Service            string      `json:"service,omitempty" yaml:"service,omitempty"`
	Echo               string      `json:"echo,omitempty" yaml:"echo,omitempty"`
	KeepAlives         int         `json:"keepalives" yaml:"keepalives"`
	Steps              []probeStep `json:"steps" yaml:"steps"`
}

type probeStep struct {
	Command string  `json:"command" yaml:"command"`
	Millis  float64 `json:"duration_ms" yaml:"duration_ms"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// reportView shows a probe report as key/value lines.
type reportView struct {
	r *client.Report
}

func (v reportView) KeyValues() [][2]string {
	r := v.r
	result := "incomplete"
	if r.Completed() {
		result = "complete"
	}
	kv := [][2]string{
		{"Server", r.Address},
		{"Handshake", result},
		{"Dialect", r.Dialect},
	}
	if len(r.Steps) > 0 && r.Steps[0].Err == nil {
		kv = append(kv,
			[2]string{"Capabilities", capsString(uint32(r.ServerCapabilities))},
			[2]string{"Max buffer", strconv.FormatUint(uint64(r.MaxBufferSize), 10)},
			[2]string{"Server time", timeutil.FormatTime(r.ServerTime)},
			[2]string{"Time zone", fmt.Sprintf("%+d min", r.ServerTimeZone)},
		)
	}
	kv = append(kv,
		[2]string{"Native OS", r.NativeOS},
		[2]string{"Native LAN manager", r.NativeLanMan},
		[2]string{"Service", r.Service},
		[2]string{"Echo", string(r.EchoData)},
	)
	if r.KeepAlives > 0 {
		kv = append(kv, [2]string{"Keep-alives", strconv.Itoa(r.KeepAlives)})
	}
	return kv
}

func (v reportView) Raw() any {
	r := v.r
	res := probeResult{
		Address:            r.Address,
		Completed:          r.Completed(),
		Dialect:            r.Dialect,
		ServerCapabilities: capsString(uint32(r.ServerCapabilities)),
		ServerTime:         r.ServerTime,
		ServerTimeZone:     r.ServerTimeZone,
		MaxBufferSize:      r.MaxBufferSize,
		NativeOS:           r.NativeOS,
		NativeLanMan:       r.NativeLanMan,
		Service:            r.Service,
		Echo:               string(r.EchoData),
		KeepAlives:         r.KeepAlives,
		Steps:              make([]probeStep, 0, len(r.Steps)),
	}
	for _, s := range r.Steps {
		ps := probeStep{Command: s.Command.String(), Millis: float64(s.Duration.Microseconds()) / 1000}
		if s.Err != nil {
			ps.Error = s.Err.Error()
		}
		res.Steps = append(res.Steps, ps)
	}
	return res
}

// stepsView is the per-request timing table of a probe.
type stepsView []client.Step

func (v stepsView) Headers() []string {
	return []string{"Step", "Command", "Duration", "Result"}
}

func (v stepsView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for i, s := range v {
		result := "ok"
		if s.Err != nil {
			result = s.Err.Error()
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), s.Command.String(), s.Duration.Round(time.Microsecond).String(), result})
	}
	return rows
}

func capsString(c uint32) string {
	return fmt.Sprintf("0x%08X", c)
}

// connectionsView is the table of live connections.
type connectionsView struct {
	conns []smb.ConnectionInfo
	now   time.Time
}

func (v connectionsView) Headers() []string {
	return []string{"ID", "Remote", "State", "Account", "Tree", "Echoes", "Requests", "Age"}
}

func (v connectionsView) Rows() [][]string {
	rows := make([][]string, 0, len(v.conns))
	for _, c := range v.conns {
		rows = append(rows, []string{
			c.ID,
			c.RemoteAddr,
			c.State,
			qualifiedAccount(c.Domain, c.Account),
			c.TreePath,
			strconv.Itoa(c.Echoes),
			strconv.Itoa(c.Requests),
			timeutil.FormatAge(c.ConnectedAt, v.now),
		})
	}
	return rows
}

func (v connectionsView) Raw() any {
	return v.conns
}

// connectionView is one live connection.
type connectionView struct {
	c smb.ConnectionInfo
}

func (v connectionView) KeyValues() [][2]string {
	c := v.c
	return [][2]string{
		{"ID", c.ID},
		{"Remote", c.RemoteAddr},
		{"State", c.State},
		{"Connected", timeutil.FormatTime(c.ConnectedAt)},
		{"Last activity", timeutil.FormatTime(c.LastActivity)},
		{"Last command", c.LastCommand},
		{"Dialect", c.Dialect},
		{"Account", qualifiedAccount(c.Domain, c.Account)},
		{"Client OS", c.ClientOS},
		{"Client LAN manager", c.ClientLanMan},
		{"Tree", c.TreePath},
		{"Service", c.Service},
		{"Echoes", strconv.Itoa(c.Echoes)},
		{"Requests", strconv.Itoa(c.Requests)},
		{"Bytes in/out", fmt.Sprintf("%d / %d", c.BytesIn, c.BytesOut)},
		{"Error", c.Error},
	}
}

func (v connectionView) Raw() any {
	return v.c
}

// historyView is the table of closed connections.
type historyView []history.Entry

func (v historyView) Headers() []string {
	return []string{"ID", "Remote", "Outcome", "State", "Account", "Tree", "Closed", "Duration"}
}

func (v historyView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, e := range v {
		rows = append(rows, []string{
			e.ID,
			e.RemoteAddr,
			e.Outcome,
			e.State,
			qualifiedAccount(e.Domain, e.Account),
			e.TreePath,
			timeutil.FormatTime(e.ClosedAt),
			timeutil.FormatDuration(e.ClosedAt.Sub(e.ConnectedAt)),
		})
	}
	return rows
}

// historyEntryView is one journal record.
type historyEntryView struct {
	e *history.Entry
}

func (v historyEntryView) KeyValues() [][2]string {
	e := v.e
	return [][2]string{
		{"ID", e.ID},
		{"Remote", e.RemoteAddr},
		{"Outcome", e.Outcome},
		{"Final state", e.State},
		{"Connected", timeutil.FormatTime(e.ConnectedAt)},
		{"Closed", timeutil.FormatTime(e.ClosedAt)},
		{"Dialect", e.Dialect},
		{"Account", qualifiedAccount(e.Domain, e.Account)},
		{"Client OS", e.ClientOS},
		{"Client LAN manager", e.ClientLanMan},
		{"Tree", e.TreePath},
		{"Service", e.Service},
		{"Echoes", strconv.Itoa(e.Echoes)},
		{"Requests", strconv.Itoa(e.Requests)},
		{"Bytes in/out", fmt.Sprintf("%d / %d", e.BytesIn, e.BytesOut)},
		{"Error", e.Error},
	}
}

func (v historyEntryView) Raw() any {
	return v.e
}

func qualifiedAccount(domain, account string) string {
	if account == "" {
		return ""
	}
	if domain == "" {
		return account
	}
	return domain + `\` + account
}
