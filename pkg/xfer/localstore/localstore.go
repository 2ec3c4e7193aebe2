// Package localstore is a reference xfer.Storage backed directly by the
// local filesystem: files are staged under a configured directory and
// renamed into place on commit. It is a flat-directory convenience, not
// the real spool-directory layout and locking discipline a production
// uucico would use (an explicit Non-goal); a real deployment would swap
// in a spool-aware Storage behind the same interface.
package localstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gouuxi/uuxi"
	"github.com/sirupsen/logrus"
)

// Store implements xfer.Storage by staging incoming files under Dir with
// a ".part" suffix and renaming them into their final name on commit.
type Store struct {
	Dir string
	Log *logrus.Entry
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string, log *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{Dir: dir, Log: log.WithField("component", "localstore")}, nil
}

func (s *Store) resolve(path string) string {
	return filepath.Join(s.Dir, filepath.Base(path))
}

func (s *Store) OpenSend(path string) (uuxi.File, int64, error) {
	full := s.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *Store) OpenReceive(path string, mode uint32) (uuxi.File, error) {
	if mode == 0 {
		mode = 0666
	}
	full := s.resolve(path) + ".part"
	f, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_RDWR, os.FileMode(mode))
	if err != nil {
		return nil, err
	}
	s.Log.Debugf("staging receive of %q at %q, mode %04o", path, full, mode)
	return f, nil
}

func (s *Store) CommitReceive(tempPath, finalPath string) error {
	from := s.resolve(tempPath) + ".part"
	to := s.resolve(finalPath)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("localstore: commit %q: %w", finalPath, err)
	}
	s.Log.Infof("committed %q", to)
	return nil
}

func (s *Store) Failed(path string, reason uuxi.TransferFailure) {
	s.Log.Warnf("transfer of %q failed: %s", path, reason)
	os.Remove(s.resolve(path) + ".part")
}
