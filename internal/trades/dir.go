package trades

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDir = "data/btc_trades"
	filePrefix = "btc_trade_"
	fileLayout = "20060102_150405"
)

// Dir is a directory of one-JSON-file-per-trade records.
type Dir struct {
	Path string
	now  func() time.Time
}

func NewDir(path string) Dir {
	if path == "" {
		path = DefaultDir
	}
	return Dir{Path: path, now: time.Now}
}

// Save writes rec to a new btc_trade_YYYYMMDD_HHMMSS.json file and returns its path.
// Records saved within the same second get a numeric suffix.
func (d Dir) Save(rec Record) (string, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("couldn't create trades dir: %w", err)
	}
	now := d.clock()
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format("2006-01-02T15:04:05.000000")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("couldn't encode trade: %w", err)
	}

	base := filePrefix + now.Format(fileLayout)
	name := filepath.Join(d.Path, base+".json")
	for i := 2; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = filepath.Join(d.Path, fmt.Sprintf("%s_%d.json", base, i))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("couldn't create trade file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("couldn't write trade file: %w", err)
		}
		return name, f.Close()
	}
}

// Load reads every trade file, newest first. Files that fail to decode are
// skipped and reported in the returned error alongside the good records.
func (d Dir) Load() ([]Record, error) {
	return d.Latest(0)
}

// Latest reads the n newest trade files (all when n <= 0).
func (d Dir) Latest(n int) ([]Record, error) {
	names, err := d.files()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(names) > n {
		names = names[:n]
	}

	var (
		records []Record
		errs    []error
	)
	for _, name := range names {
		rec, err := readRecord(filepath.Join(d.Path, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

func (d Dir) files() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read trades dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return newer(parseName(names[i]), parseName(names[j]))
	})
	return names, nil
}

// fileKey orders trade files: by timestamp, then by same-second suffix.
type fileKey struct {
	stamp string
	seq   int
	name  string
}

func parseName(name string) fileKey {
	k := fileKey{name: name, seq: 1}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json")
	if len(rest) < len(fileLayout) {
		return k
	}
	stamp, suffix := rest[:len(fileLayout)], rest[len(fileLayout):]
	if _, err := time.Parse(fileLayout, stamp); err != nil {
		return k
	}
	if suffix != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(suffix, "_"))
		if err != nil || !strings.HasPrefix(suffix, "_") {
			return k
		}
		k.seq = n
	}
	k.stamp = stamp
	return k
}

// newer sorts unparseable names last.
func newer(a, b fileKey) bool {
	if a.stamp != b.stamp {
		return a.stamp > b.stamp
	}
	if a.seq != b.seq {
		return a.seq > b.seq
	}
	return a.name > b.name
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return rec, nil
}

func (d Dir) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}
