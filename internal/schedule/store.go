package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/zhengda-lu/antiv/internal/utils"
)

var (
	// ErrCorrupt is returned when the schedule file cannot be parsed.
	ErrCorrupt = errors.New("schedule file is corrupt")
	// ErrIndex is returned by Remove for an out-of-range index.
	ErrIndex = errors.New("no schedule at that index")
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, _, err := parseTime(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks a record before it is stored.
func Validate(r Record) error {
	if err := recordValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid schedule: %s fails %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

// Store reads and writes the schedule file. Every call round-trips through
// the file; concurrent writers race and the last one wins.
type Store struct {
	path string
	log  *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, log: logger}
}

// DefaultPath returns ~/antiv_schedule.json.
func DefaultPath() string {
	home := utils.HomeDir()
	if home == "" {
		return "antiv_schedule.json"
	}
	return filepath.Join(home, "antiv_schedule.json")
}

func (s *Store) Path() string { return s.path }

// Load returns the stored records in order. A missing or empty file yields
// no records; an unparseable one yields ErrCorrupt.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return records, nil
}

// Save overwrites the file with records.
func (s *Store) Save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	if err := utils.WriteJSONAtomic(s.path, records); err != nil {
		return fmt.Errorf("failed to write schedule file: %w", err)
	}
	return nil
}

// Add validates r and appends it. A corrupt file is replaced.
func (s *Store) Add(r Record) error {
	if err := Validate(r); err != nil {
		return err
	}
	t, err := NormalizeTime(r.Time)
	if err != nil {
		return err
	}
	r.Time = t

	records, err := s.Load()
	if errors.Is(err, ErrCorrupt) {
		s.log.Warn("replacing corrupt schedule file", "path", s.path, "error", err)
		records = nil
	} else if err != nil {
		return err
	}

	return s.Save(append(records, r))
}

// Remove deletes the record at index and returns it.
func (s *Store) Remove(index int) (Record, error) {
	records, err := s.Load()
	if err != nil {
		return Record{}, err
	}
	if index < 0 || index >= len(records) {
		return Record{}, fmt.Errorf("%w: %d (have %d)", ErrIndex, index, len(records))
	}

	removed := records[index]
	records = append(records[:index], records[index+1:]...)
	if err := s.Save(records); err != nil {
		return Record{}, err
	}
	return removed, nil
}
