package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// andXSize is the size of the ANDX block that opens the parameters of every
// AndX command: AndXCommand u8, AndXReserved u8, AndXOffset u16.
const andXSize = 4

// readTerminalAndX consumes the ANDX block and rejects chained commands.
func readTerminalAndX(r *smbenc.Reader) error {
	cmd := types.Command(r.ReadUint8())
	r.Skip(1)
	offset := r.ReadUint16()
	if err := r.Err(); err != nil {
		return err
	}
	if cmd != types.CommandNoAndX || offset != 0 {
		return fmt.Errorf("%w: next command %s at offset %d", types.ErrUnsupportedChaining, cmd, offset)
	}
	return nil
}

// writeTerminalAndX writes an ANDX block that ends the chain.
func writeTerminalAndX(w *smbenc.Writer) {
	w.WriteUint8(uint8(types.CommandNoAndX))
	w.WriteUint8(0)
	w.WriteUint16(0)
}
