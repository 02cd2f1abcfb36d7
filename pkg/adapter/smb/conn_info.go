package smb

import (
	"time"

	"github.com/marmos91/dittosmb/pkg/history"
)

// ConnectionInfo is a point-in-time view of one connection and what its
// handshake has learned so far.
type ConnectionInfo struct {
	ID           string    `json:"id"`
	RemoteAddr   string    `json:"remote_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	State        string    `json:"state"`
	LastCommand  string    `json:"last_command,omitempty"`
	Dialect      string    `json:"dialect,omitempty"`
	Account      string    `json:"account,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	ClientOS     string    `json:"client_os,omitempty"`
	ClientLanMan string    `json:"client_lan_man,omitempty"`
	TreePath     string    `json:"tree_path,omitempty"`
	Service      string    `json:"service,omitempty"`
	Echoes       int       `json:"echoes"`
	Requests     int       `json:"requests"`
	BytesIn      int64     `json:"bytes_in"`
	BytesOut     int64     `json:"bytes_out"`
	Error        string    `json:"error,omitempty"`
}

func (i ConnectionInfo) entry(closedAt time.Time, outcome string) history.Entry {
	return history.Entry{
		ID:           i.ID,
		RemoteAddr:   i.RemoteAddr,
		ConnectedAt:  i.ConnectedAt,
		ClosedAt:     closedAt,
		Outcome:      outcome,
		State:        i.State,
		Dialect:      i.Dialect,
		Account:      i.Account,
		Domain:       i.Domain,
		ClientOS:     i.ClientOS,
		ClientLanMan: i.ClientLanMan,
		TreePath:     i.TreePath,
		Service:      i.Service,
		Echoes:       i.Echoes,
		Requests:     i.Requests,
		BytesIn:      i.BytesIn,
		BytesOut:     i.BytesOut,
		Error:        i.Error,
	}
}
