package directory

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Trivernis/snekcloud-go/internal/log"
)

// localDescriptorStem is the filename stem (case-insensitive) that always
// holds the node's own descriptor and is skipped during load.
const localDescriptorStem = "local"

// LoadSeed implements DirectoryLoader: it ensures dataDir
// exists, enumerates *.toml within it, and returns the PeerRecords it can
// parse, excluding local.toml, selfID, and entries that fail validation.
func LoadSeed(dataDir string, trustedIDs []string, selfID string) ([]PeerRecord, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	trusted := make(map[string]bool, len(trustedIDs))
	for _, id := range trustedIDs {
		trusted[id] = true
	}

	entries, err := filepath.Glob(filepath.Join(dataDir, "*.toml"))
	if err != nil {
		return nil, err
	}

	records := make([]PeerRecord, 0, len(entries))
	for _, path := range entries {
		stem := strings.TrimSuffix(filepath.Base(path), ".toml")
		if strings.EqualFold(stem, localDescriptorStem) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Directory.Warn().Err(err).Str("path", path).Msg("skipping unreadable peer descriptor")
			continue
		}

		desc, err := ParseDescriptor(data)
		if err != nil {
			log.Directory.Warn().Err(err).Str("path", path).Msg("skipping unparseable peer descriptor")
			continue
		}

		if desc.ID == selfID || !ValidateID(desc.ID) {
			continue
		}

		rec, err := desc.ToPeerRecord(trusted)
		if err != nil {
			log.Directory.Warn().Err(err).Str("path", path).Msg("skipping peer descriptor with invalid key")
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}
