package sections

import (
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// Group is one entry of the user/group directory.
type Group struct {
	GID     uint32
	Name    string
	Members []uint32 // sorted, unique
}

// UserGroups is the directory of groups and their member uids.
//
// Section lines:
//
//	group/gid/<gid>/name/<escaped>/members/<uid,uid,...>
//	group/end
//
// An empty member list is written as "-".
type UserGroups struct {
	mu     sync.Mutex
	groups map[uint32]Group
}

// NewUserGroups creates an empty directory.
func NewUserGroups() *UserGroups {
	return &UserGroups{groups: make(map[uint32]Group)}
}

func (u *UserGroups) Name() string { return "group" }

// Set adds or replaces group g.
func (u *UserGroups) Set(g Group) {
	members := slices.Clone(g.Members)
	slices.Sort(members)
	g.Members = slices.Compact(members)
	u.mu.Lock()
	u.groups[g.GID] = g
	u.mu.Unlock()
}

// Delete removes group gid.
func (u *UserGroups) Delete(gid uint32) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.groups[gid]
	delete(u.groups, gid)
	return ok
}

// Get returns group gid.
func (u *UserGroups) Get(gid uint32) (Group, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	g, ok := u.groups[gid]
	if ok {
		g.Members = slices.Clone(g.Members)
	}
	return g, ok
}

// IsMember reports whether uid belongs to gid.
func (u *UserGroups) IsMember(uid, gid uint32) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	g, ok := u.groups[gid]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(g.Members, uid)
	return found
}

// Len returns the number of groups.
func (u *UserGroups) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.groups)
}

// Groups returns all groups ordered by gid.
func (u *UserGroups) Groups() []Group {
	u.mu.Lock()
	out := make([]Group, 0, len(u.groups))
	for _, g := range u.groups {
		g.Members = slices.Clone(g.Members)
		out = append(out, g)
	}
	u.mu.Unlock()
	slices.SortFunc(out, func(a, b Group) int { return cmpInt64(int64(a.GID), int64(b.GID)) })
	return out
}

// Snapshot returns a deep copy.
func (u *UserGroups) Snapshot() *UserGroups {
	cp := NewUserGroups()
	for _, g := range u.Groups() {
		cp.groups[g.GID] = g
	}
	return cp
}

func formatMembers(members []uint32) string {
	if len(members) == 0 {
		return "-"
	}
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = strconv.FormatUint(uint64(m), 16)
	}
	return strings.Join(parts, ",")
}

func parseMembers(s string) ([]uint32, error) {
	if s == "-" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return nil, domain.ErrMalformed.WithDetails("group member " + strconv.Quote(p))
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func (u *UserGroups) WriteSection(w io.Writer) error {
	groups := u.Groups()
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, record.NewBuilder(u.Name()).
			KUhex("gid", uint64(g.GID)).
			Str("name").Name(g.Name).
			KV("members", formatMembers(g.Members)).
			Line())
	}
	return writeLines(w, u.Name(), lines)
}

func (u *UserGroups) ReplaySection(r *LineReader) error {
	return replayLines(r, u.Name(), func(f *record.Fields) error {
		var g Group
		g.GID = uint32(f.KUhexN("gid", 32))
		f.Expect("name")
		g.Name = f.Name()
		members := f.KStr("members")
		if f.Err() != nil {
			return nil
		}
		var err error
		if g.Members, err = parseMembers(members); err != nil {
			return err
		}
		u.Set(g)
		return nil
	})
}
