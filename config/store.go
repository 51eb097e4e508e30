package config

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when the store holds no configuration yet, or
// not the requested version.
var ErrNotFound = errors.New("config: not found")

var (
	currentKey    = []byte("config/current")
	versionPrefix = []byte("config/v/")
)

// Version is one saved revision of the configuration.
type Version struct {
	Number  uint64    `json:"version"`
	Created time.Time `json:"created"`
	Note    string    `json:"note,omitempty"`
	Config  *Config   `json:"config"`
}

// Store keeps every revision of the configuration in Badger. Each write
// adds a new version and moves the current pointer in one transaction.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config store: path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("config store: open %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func versionKey(n uint64) []byte {
	k := make([]byte, len(versionPrefix)+8)
	copy(k, versionPrefix)
	binary.BigEndian.PutUint64(k[len(versionPrefix):], n)
	return k
}

func readVersion(txn *badger.Txn, n uint64) (Version, error) {
	item, err := txn.Get(versionKey(n))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, err
	}

	var v Version
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	return v, err
}

func currentNumber(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(currentKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("config store: corrupt current pointer")
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

// Current returns the latest configuration.
func (s *Store) Current() (Version, error) {
	var v Version
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := currentNumber(txn)
		if err != nil {
			return err
		}
		v, err = readVersion(txn, n)
		return err
	})
	return v, err
}

// Get returns a specific version.
func (s *Store) Get(n uint64) (Version, error) {
	var v Version
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = readVersion(txn, n)
		return err
	})
	return v, err
}

// Put validates cfg and stores it as the next version.
func (s *Store) Put(cfg *Config, note string) (Version, error) {
	return s.Update(note, func(c *Config) error {
		*c = *cfg.Clone()
		return nil
	})
}

// Update applies fn to a copy of the current configuration (Default when
// the store is empty) and stores the result as a new version. Nothing is
// written if fn fails or the result does not validate.
func (s *Store) Update(note string, fn func(*Config) error) (Version, error) {
	var out Version
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := currentNumber(txn)
		cfg := Default()
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			cur, err := readVersion(txn, n)
			if err != nil {
				return err
			}
			cfg = cur.Config.Clone()
		}

		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		out = Version{Number: n + 1, Created: s.now().UTC(), Note: note, Config: cfg}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		if err := txn.Set(versionKey(out.Number), data); err != nil {
			return err
		}
		ptr := make([]byte, 8)
		binary.BigEndian.PutUint64(ptr, out.Number)
		return txn.Set(currentKey, ptr)
	})
	if err != nil {
		return Version{}, err
	}
	return out, nil
}

// History lists every stored version, oldest first.
func (s *Store) History() ([]Version, error) {
	var out []Version
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = versionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var v Version
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
