package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baselayer-io/KomodoPlatform/config"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	f := &config.File{
		NetID:         "mm2-testnet",
		LocalKey:      "aa112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		PreferredPort: 42069,
		SessionID:     "session-1",
		DBDir:         "/tmp/mm2p2p",
		Bootstrap:     []string{"203.0.113.1:8337"},
	}

	path := filepath.Join(t.TempDir(), "mm2p2p.toml")
	require.NoError(t, f.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, f, loaded)

	peer, err := loaded.LocalPeerKey()
	require.NoError(t, err)
	require.Equal(t, f.LocalKey, peer.String())
}

func TestOptionsOmitsZeroValues(t *testing.T) {
	f := &config.File{}
	require.Empty(t, f.Options())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
