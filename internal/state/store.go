package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tyeth/tank-sensor/internal/log"
)

// Store loads and saves the persisted record at a fixed path. Band bounds
// live here so that whatever is on disk, the state handed to a cycle is
// always usable.
type Store struct {
	Path        string
	DefaultBand uint
	MinBand     uint
	MaxBand     uint
	MaxReadings int
}

// Load reads the record from disk. It never fails: a missing, unreadable, or
// corrupt file yields a fresh default record with a new device ID, and any
// out-of-range band is clamped back into bounds. Worst case the device
// re-baselines and sends one extra report.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("no state at %s, starting fresh", s.Path)
		} else {
			log.Warnf("reading state %s: %v, starting fresh", s.Path, err)
		}
		return s.defaultState()
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warnf("corrupt state %s: %v, starting fresh", s.Path, err)
		return s.defaultState()
	}

	s.sanitize(&st)
	return st
}

// Save writes the record atomically: temp file in the same directory, fsync,
// rename over the target. A crash mid-save leaves the previous record
// intact.
func (s *Store) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	f, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *Store) defaultState() State {
	return State{
		DeviceID:       uuid.NewString(),
		HysteresisBand: s.DefaultBand,
	}
}

// sanitize repairs a structurally valid record whose values drifted out of
// bounds, e.g. after a config change shrank the band limits.
func (s *Store) sanitize(st *State) {
	if st.DeviceID == "" {
		st.DeviceID = uuid.NewString()
		log.Warnf("state had no device id, assigned %s", st.DeviceID)
	}
	if st.HysteresisBand < s.MinBand {
		log.Warnf("stored band %dmm below minimum, clamping to %dmm", st.HysteresisBand, s.MinBand)
		st.HysteresisBand = s.MinBand
	}
	if st.HysteresisBand > s.MaxBand {
		log.Warnf("stored band %dmm above maximum, clamping to %dmm", st.HysteresisBand, s.MaxBand)
		st.HysteresisBand = s.MaxBand
	}
	if s.MaxReadings > 0 && len(st.Readings) > s.MaxReadings {
		st.Readings = st.Readings[:s.MaxReadings]
	}
}
