// Package config loads the on-disk mm2p2p.toml file describing a
// node's identity and network settings into core.Option values,
// following drand's util/parsers.go pattern of a plain TOML-tagged
// struct marshaled with BurntSushi/toml.
package config

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/baselayer-io/KomodoPlatform/core"
	"github.com/baselayer-io/KomodoPlatform/key"
)

const filePerm = 0600

// File is the mm2p2p.toml schema.
type File struct {
	NetID         string `toml:"net_id"`
	LocalKey      string `toml:"local_key"`
	PreferredPort int    `toml:"preferred_port"`
	SessionID     string `toml:"session_id"`
	DBDir         string `toml:"db_dir"`

	// Bootstrap lists seed-node addresses for the underlying DHT engine
	// to dial on startup. Neither dht.Mock nor dht.LibDHT currently
	// consume this list (routing-table bootstrap is an external
	// collaborator's concern per spec §1); it is carried through so a
	// production DHT engine can be wired in without a config format
	// change.
	Bootstrap []string `toml:"bootstrap"`
}

// Load reads and parses path into a File.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save encodes f as TOML and writes it to path with owner-only permissions.
func (f *File) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), filePerm)
}

// LocalPeerKey parses the configured local_key field.
func (f *File) LocalPeerKey() (key.Peer, error) {
	return key.FromHex(f.LocalKey)
}

// Options translates the file's settings into core.Option values,
// omitting anything left at its zero value so core.NewConfig's own
// defaults still apply.
func (f *File) Options() []core.Option {
	var opts []core.Option
	if f.NetID != "" {
		opts = append(opts, core.WithNetID(f.NetID))
	}
	if f.PreferredPort != 0 {
		opts = append(opts, core.WithPreferredPort(f.PreferredPort))
	}
	if f.SessionID != "" {
		opts = append(opts, core.WithSessionID(f.SessionID))
	}
	if f.DBDir != "" {
		opts = append(opts, core.WithDBDir(f.DBDir))
	}
	return opts
}
