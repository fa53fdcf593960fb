package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/journal"
)

const (
	// DefaultSuffix is the extension of snapshot files.
	DefaultSuffix = "snapshot"

	digits = 19
)

// DeserializeError reports a snapshot that is missing, truncated or written
// in an incompatible format.
type DeserializeError struct {
	Path string
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("cannot read snapshot %s: %v", e.Path, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// Manager owns one snapshot directory.
//
// Thread-safety: a Manager holds no mutable state; concurrent calls are safe
// as long as two writers never write the same version at once.
type Manager struct {
	dir        string
	suffix     string
	serializer *codec.Serializer
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSuffix sets the file extension, without the dot.
func WithSuffix(suffix string) Option {
	return func(m *Manager) { m.suffix = suffix }
}

// WithSerializer sets the serialization pipeline.
func WithSerializer(s *codec.Serializer) Option {
	return func(m *Manager) { m.serializer = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// ValidateSuffix rejects suffixes that cannot name a snapshot file. A
// snapshot may share its directory with the journal, so a suffix that makes
// snapshot names look like segment names is refused.
func ValidateSuffix(suffix string) error {
	if suffix == "" || strings.ContainsAny(suffix, `./\`) {
		return fmt.Errorf("invalid snapshot suffix %q", suffix)
	}
	if strings.EqualFold("."+suffix, journal.Extension) {
		return fmt.Errorf("invalid snapshot suffix %q: reserved for journal segments", suffix)
	}
	return nil
}

// NewManager creates a manager over dir, creating the directory if needed.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		dir:        dir,
		suffix:     DefaultSuffix,
		serializer: codec.DefaultSerializer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := ValidateSuffix(m.suffix); err != nil {
		return nil, err
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return m, nil
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// FileName returns the file name of the snapshot at version.
func (m *Manager) FileName(version uint64) string {
	return fmt.Sprintf("%0*d.%s", digits, version, m.suffix)
}

func (m *Manager) path(version uint64) string {
	return filepath.Join(m.dir, m.FileName(version))
}

// WriteSnapshot serializes state as the snapshot at version and returns the
// path of the file written. An existing snapshot at the same version is
// replaced.
func (m *Manager) WriteSnapshot(state any, version uint64) (string, error) {
	data, err := m.Encode(state)
	if err != nil {
		return "", fmt.Errorf("serialize snapshot %d: %w", version, err)
	}
	return m.WriteEncoded(data, version)
}

// Encode serializes state with the manager's pipeline.
func (m *Manager) Encode(state any) ([]byte, error) {
	return m.serializer.Serialize(state)
}

// WriteEncoded atomically writes bytes produced by Encode as the snapshot at
// version.
func (m *Manager) WriteEncoded(data []byte, version uint64) (string, error) {
	tmp, err := os.CreateTemp(m.dir, fmt.Sprintf("snapshot%dtemp*.generatingSnapshot", version))
	if err != nil {
		return "", fmt.Errorf("create temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temporary snapshot %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temporary snapshot %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temporary snapshot %s: %w", tmpPath, err)
	}

	permanent := m.path(version)
	if err := os.Remove(permanent); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("temporary snapshot generated: %s; unable to replace %s: %w", tmpPath, permanent, err)
	}
	if err := os.Rename(tmpPath, permanent); err != nil {
		return "", fmt.Errorf("temporary snapshot generated: %s; unable to rename it to %s: %w", tmpPath, permanent, err)
	}
	if err := syncDir(m.dir); err != nil {
		return "", err
	}

	m.logger.Info("snapshot written",
		"version", version,
		"file", permanent,
		"bytes", len(data),
		"format", m.serializer.Name(),
	)
	return permanent, nil
}

// LatestVersion returns the highest snapshot version in the directory, or
// zero when there is none.
func (m *Manager) LatestVersion() (uint64, error) {
	versions, err := m.Versions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

// Versions lists every snapshot version in the directory, ascending.
func (m *Manager) Versions() ([]uint64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("error reading file list from directory %s: %w", m.dir, err)
	}

	var versions []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := m.parseVersion(e.Name()); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(a, b int) bool { return versions[a] < versions[b] })
	return versions, nil
}

// parseVersion returns the version encoded in a snapshot file name.
func (m *Manager) parseVersion(name string) (uint64, bool) {
	num, ok := strings.CutSuffix(name, "."+m.suffix)
	if !ok || len(num) != digits {
		return 0, false
	}
	for _, r := range num {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ReadSnapshot decodes the snapshot at version into the value into points to.
func (m *Manager) ReadSnapshot(version uint64, into any) error {
	path := m.path(version)
	data, err := os.ReadFile(path)
	if err != nil {
		return &DeserializeError{Path: path, Err: err}
	}
	if err := m.serializer.Deserialize(data, into); err != nil {
		return &DeserializeError{Path: path, Err: err}
	}
	return nil
}

// Load returns the state recorded at version. Version zero means no snapshot
// was ever taken and returns initial unchanged.
func Load[S any](m *Manager, initial S, version uint64) (S, error) {
	if version == 0 {
		return initial, nil
	}
	var state S
	if err := m.ReadSnapshot(version, &state); err != nil {
		var zero S
		return zero, err
	}
	m.logger.Info("snapshot loaded", "version", version, "format", m.serializer.Name())
	return state, nil
}

// syncDir makes a rename durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open snapshot directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync snapshot directory: %w", err)
	}
	return nil
}
