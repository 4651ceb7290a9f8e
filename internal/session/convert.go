package session

import (
	"github.com/go-omads/omads/internal/storage"
	"github.com/go-omads/omads/internal/wire"
)

// wireItemFromStorage converts a committed/fetched storage.Item to its wire
// representation for an outbound Add/Replace command (spec §4.6).
func wireItemFromStorage(it storage.Item) wire.Item {
	return wire.Item{
		Target: it.LocalKey,
		Source: it.RemoteKey,
		Parent: it.ParentKey,
		Meta: &wire.ItemMeta{
			Type:    it.MIMEType,
			Format:  it.Format,
			Version: it.Version,
		},
		Data: it.Payload,
	}
}
