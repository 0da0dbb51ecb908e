package directory

import (
	"fmt"

	"github.com/Trivernis/snekcloud-go/internal/keys"
	"github.com/Trivernis/snekcloud-go/internal/snerr"
	"github.com/pelletier/go-toml/v2"
)

// NodeDescriptor is the on-disk, per-peer TOML form.
type NodeDescriptor struct {
	ID        string   `toml:"id"`
	Addresses []string `toml:"addresses"`
	PublicKey string   `toml:"public_key"`
}

// Marshal pretty-prints the descriptor as TOML.
func (d NodeDescriptor) Marshal() ([]byte, error) {
	data, err := toml.Marshal(d)
	if err != nil {
		return nil, snerr.Wrap(snerr.TomlSerialize, err)
	}
	return data, nil
}

// ParseDescriptor parses TOML bytes into a NodeDescriptor.
func ParseDescriptor(data []byte) (NodeDescriptor, error) {
	var desc NodeDescriptor
	if err := toml.Unmarshal(data, &desc); err != nil {
		return desc, snerr.Wrap(snerr.TomlDeserialize, err)
	}
	return desc, nil
}

// ToPeerRecord converts a parsed descriptor into a PeerRecord, deriving
// Trusted from whether id appears in trustedIDs. The returned record's
// Liveness starts alive; the caller is expected to let the transport
// correct this on first contact.
func (d NodeDescriptor) ToPeerRecord(trustedIDs map[string]bool) (PeerRecord, error) {
	pub, err := keys.UnarmorPublicKey(d.PublicKey)
	if err != nil {
		return PeerRecord{}, fmt.Errorf("peer %s: %w", d.ID, err)
	}
	return PeerRecord{
		ID:        d.ID,
		PublicKey: [32]byte(pub),
		Addresses: append([]string(nil), d.Addresses...),
		Trusted:   trustedIDs[d.ID],
		Liveness:  NewLiveness(false),
	}, nil
}

func armorPublicKeyString(pub [32]byte) string {
	return keys.ArmorPublicKey(keys.PublicKey(pub))
}
