// Package checkpoint writes and loads metadata checkpoints.
package checkpoint

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/metatree"
	"github.com/yndnr/chunkmeta-go/internal/core/sections"
)

const (
	filePrefix    = "chkpt."
	tempSuffix    = ".tmp"
	LatestName    = "latest"
	FormatVersion = 1

	DefaultDir        = "./kfscp"
	DefaultKeep       = 5
	DefaultBufferSize = 1 << 20
)

// Config configures the checkpoint writer.
type Config struct {
	Dir string

	// WriteSync opens checkpoint files with O_SYNC.
	WriteSync bool

	// BufferSize is the write buffer size of the checksummed stream.
	BufferSize int

	// Keep is the number of published checkpoints Prune retains.
	Keep int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		BufferSize: DefaultBufferSize,
		Keep:       DefaultKeep,
		Logger:     slog.Default(),
	}
}

// Source is the state a checkpoint externalizes. Both parts should be
// point-in-time snapshots owned by the caller for the duration of Write.
type Source struct {
	Tree *metatree.Tree

	// Sections are written in slice order. Load always replays them in the
	// order of sections.Set.Ordered.
	Sections []sections.Contributor
}

// Header is the parsed checkpoint header.
type Header struct {
	LogSeq      int64     `json:"log_seq" yaml:"log_seq"`
	ErrChecksum int64     `json:"err_checksum" yaml:"err_checksum"`
	Version     int       `json:"version" yaml:"version"`
	FSID        int64     `json:"fsid" yaml:"fsid"`
	Crtime      time.Time `json:"crtime" yaml:"crtime"`
	FileIDSeed  int64     `json:"file_id_seed" yaml:"file_id_seed"`
	ChunkIDSeed int64     `json:"chunk_id_seed" yaml:"chunk_id_seed"`
	Time        time.Time `json:"time" yaml:"time"`
	LogName     string    `json:"log_name" yaml:"log_name"`
}

// Info describes a checkpoint file.
type Info struct {
	Seq         int64     `json:"seq" yaml:"seq"`
	Path        string    `json:"path" yaml:"path"`
	Size        int64     `json:"size" yaml:"size"`
	ModTime     time.Time `json:"mod_time" yaml:"mod_time"`
	Checksum    string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	LogName     string    `json:"log_name,omitempty" yaml:"log_name,omitempty"`
	ErrChecksum int64     `json:"err_checksum,omitempty" yaml:"err_checksum,omitempty"`
	Leaves      int       `json:"leaves,omitempty" yaml:"leaves,omitempty"`
	Latest      bool      `json:"latest,omitempty" yaml:"latest,omitempty"`
}

// FileName returns the checkpoint file name for seq.
func FileName(seq int64) string {
	return filePrefix + strconv.FormatInt(seq, 10)
}

// ParseFileName returns the sequence number of a checkpoint file name.
func ParseFileName(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(filepath.Base(name), filePrefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// List returns the published checkpoints in dir ordered by sequence
// number, oldest first. A missing directory yields an empty list.
func List(dir string) ([]*Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list %s: %w", dir, err)
	}

	latest, _ := Latest(dir)

	var infos []*Info
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		seq, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		infos = append(infos, &Info{
			Seq:     seq,
			Path:    path,
			Size:    st.Size(),
			ModTime: st.ModTime(),
			Latest:  path == latest,
		})
	}
	slices.SortFunc(infos, func(a, b *Info) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return infos, nil
}

// Latest returns the path the latest pointer in dir refers to.
func Latest(dir string) (string, error) {
	target, err := os.Readlink(filepath.Join(dir, LatestName))
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, nil
}

// Prune deletes all but the newest keep checkpoints in dir. The checkpoint
// the latest pointer names is never deleted. It returns the removed paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		keep = 1
	}
	infos, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}

	var removed []string
	for _, info := range infos[:len(infos)-keep] {
		if info.Latest {
			continue
		}
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("checkpoint: prune %s: %w", info.Path, err)
		}
		removed = append(removed, info.Path)
	}
	return removed, nil
}

// CleanTemp removes temporary files left in dir by an interrupted write.
// It must not run concurrently with Write.
func CleanTemp(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: clean %s: %w", dir, err)
	}
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if !strings.HasPrefix(name, filePrefix) && !strings.HasPrefix(name, LatestName+".") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("checkpoint: clean %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
