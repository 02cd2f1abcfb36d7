package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// NullPayload is an empty body: WordCount 0, ByteCount 0. Error replies use
// it, with the failure carried in the header status.
type NullPayload struct {
	Cmd types.Command
}

func (p *NullPayload) Command() types.Command { return p.Cmd }

func (p *NullPayload) Encode(m *message.Message) error {
	m.Command = p.Cmd
	m.Parameters = nil
	m.Data = nil
	return nil
}

func (p *NullPayload) String() string {
	return fmt.Sprintf("%s (empty)", p.Cmd)
}

func (*NullPayload) sealed() {}

// DecodeNullPayload accepts any message and keeps only its command. The
// blocks of error replies are ignored.
func DecodeNullPayload(m *message.Message) (*NullPayload, error) {
	return &NullPayload{Cmd: m.Command}, nil
}
