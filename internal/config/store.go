package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides of section keys, e.g.
// AZ_DEFAULTS_GROUP for defaults.group.
const EnvPrefix = "AZ"

// Store is a section/key view of the config file with environment overrides.
type Store struct {
	path string
	read *viper.Viper
	file *viper.Viper
	lock *flock.Flock
}

// OpenStore loads path if it exists. A missing file yields an empty store.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		read: newViper(path),
		file: newViper(path),
		lock: flock.New(path + ".lock"),
	}
	s.read.SetEnvPrefix(EnvPrefix)
	s.read.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	s.read.AutomaticEnv()

	for _, v := range []*viper.Viper{s.read, s.file} {
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("read config store: %w", err)
		}
	}
	return s, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return v
}

func key(section, name string) string {
	return strings.ToLower(strings.TrimSpace(section) + "." + strings.TrimSpace(name))
}

func (s *Store) Get(section, name, fallback string) string {
	k := key(section, name)
	if !s.read.IsSet(k) {
		return fallback
	}
	return s.read.GetString(k)
}

func (s *Store) GetBool(section, name string, fallback bool) bool {
	k := key(section, name)
	if !s.read.IsSet(k) {
		return fallback
	}
	return s.read.GetBool(k)
}

// Section returns every key of section with its effective value.
func (s *Store) Section(section string) map[string]string {
	out := map[string]string{}
	for k, v := range s.read.GetStringMapString(strings.ToLower(section)) {
		out[k] = v
	}
	return out
}

// Keys lists the keys of section in sorted order.
func (s *Store) Keys(section string) []string {
	sec := s.Section(section)
	out := make([]string, 0, len(sec))
	for k := range sec {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set updates a value in memory. Call Save to persist.
func (s *Store) Set(section, name, value string) {
	k := key(section, name)
	s.read.Set(k, value)
	s.file.Set(k, value)
}

// Save writes the file-backed values, holding the store lock.
func (s *Store) Save(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock config: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
