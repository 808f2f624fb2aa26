package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig(t *testing.T) {
	requireT := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "registry.toml")

	requireT.NoError(os.WriteFile(path, []byte("maxFiles = 3\n"), 0o600))
	config, err := LoadServerConfig(path)
	requireT.NoError(err)
	requireT.Equal(ServerConfig{MaxFiles: 3}, config)

	requireT.NoError(os.WriteFile(path, nil, 0o600))
	config, err = LoadServerConfig(path)
	requireT.NoError(err)
	requireT.Equal(DefaultServerConfig(), config)

	requireT.NoError(os.WriteFile(path, []byte("maxFiles = 0\n"), 0o600))
	_, err = LoadServerConfig(path)
	requireT.Error(err)

	requireT.NoError(os.WriteFile(path, []byte("maxFiles = \n"), 0o600))
	_, err = LoadServerConfig(path)
	requireT.Error(err)

	_, err = LoadServerConfig(filepath.Join(dir, "missing.toml"))
	requireT.Error(err)
}

func TestParsePort(t *testing.T) {
	requireT := require.New(t)

	port, err := ParsePort("9090")
	requireT.NoError(err)
	requireT.Equal(uint16(9090), port)

	for _, s := range []string{"", "0", "-1", "65536", "port"} {
		_, err := ParsePort(s)
		requireT.Error(err, s)
	}
}

func TestParsePeerID(t *testing.T) {
	requireT := require.New(t)

	id, err := ParsePeerID("4294967295")
	requireT.NoError(err)
	requireT.EqualValues(4294967295, id)

	for _, s := range []string{"", "0", "-5", "4294967296", "abc"} {
		_, err := ParsePeerID(s)
		requireT.Error(err, s)
	}
}
