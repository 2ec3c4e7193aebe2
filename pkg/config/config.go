// Package config loads the named integer parameters of §6 into a
// session.Config, the same way the reference stack's EDS parser
// (od_parser.go) turns an ini-format file's sections into typed fields,
// via the same gopkg.in/ini.v1 library.
package config

import (
	"time"

	"github.com/gouuxi/uuxi/pkg/session"
	"gopkg.in/ini.v1"
)

// sectionName is the ini section holding the recognized parameters. A file
// with no such section yields session.DefaultConfig() unchanged.
const sectionName = "uuxi"

// Recognized parameter names, exactly as they appear as keys under
// [uuxi] in a config file.
const (
	KeyPacketSize       = "packet-size"
	KeyWindow           = "window"
	KeyRemotePacketSize = "remote-packet-size"
	KeyRemoteWindow     = "remote-window"
	KeySyncTimeout      = "sync-timeout"
	KeySyncRetries      = "sync-retries"
	KeyTimeout          = "timeout"
	KeyRetries          = "retries"
	KeyErrors           = "errors"
	KeyErrorDecay       = "error-decay"
)

// Load parses the ini-format file at path and returns a session.Config
// with any key present under [uuxi] overriding session.DefaultConfig()'s
// value for that field.
func Load(path string) (session.Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return session.Config{}, err
	}
	return fromFile(file), nil
}

// LoadBytes is Load's counterpart for already-read config data.
func LoadBytes(data []byte) (session.Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return session.Config{}, err
	}
	return fromFile(file), nil
}

func fromFile(file *ini.File) session.Config {
	cfg := session.DefaultConfig()
	if !file.HasSection(sectionName) {
		return cfg
	}
	section := file.Section(sectionName)

	cfg.PacketSize = uint16(section.Key(KeyPacketSize).MustInt(int(cfg.PacketSize)))
	cfg.Window = uint8(section.Key(KeyWindow).MustInt(int(cfg.Window)))
	cfg.RemotePacketSize = uint16(section.Key(KeyRemotePacketSize).MustInt(int(cfg.RemotePacketSize)))
	cfg.RemoteWindow = uint8(section.Key(KeyRemoteWindow).MustInt(int(cfg.RemoteWindow)))
	cfg.SyncTimeout = seconds(section, KeySyncTimeout, cfg.SyncTimeout)
	cfg.SyncRetries = section.Key(KeySyncRetries).MustInt(cfg.SyncRetries)
	cfg.Timeout = seconds(section, KeyTimeout, cfg.Timeout)
	cfg.Retries = section.Key(KeyRetries).MustInt(cfg.Retries)
	cfg.Errors = section.Key(KeyErrors).MustInt(cfg.Errors)
	cfg.ErrorDecay = section.Key(KeyErrorDecay).MustInt(cfg.ErrorDecay)
	return cfg
}

// seconds reads key as a plain integer count of seconds, per §6's
// "sync-timeout"/"timeout" parameters, falling back to fallback if absent.
func seconds(section *ini.Section, key string, fallback time.Duration) time.Duration {
	n := section.Key(key).MustInt(int(fallback / time.Second))
	return time.Duration(n) * time.Second
}
