// Package folders contains domain types and helpers for prompt folders:
// access-scope resolution, localized display shaping, and the nested
// hierarchy builder.
package folders

import (
	"sort"

	"github.com/thebtf/promptdock/internal/locale"
)

// Type is a folder's access scope, derived from its ownership columns.
type Type string

const (
	// TypeUser is a personal folder owned by a single user.
	TypeUser Type = "user"

	// TypeOrganization is a folder shared within a company.
	TypeOrganization Type = "organization"

	// TypeOfficial is a globally curated folder with no owner.
	TypeOfficial Type = "official"
)

// Folder is a folder record as read from the catalog.
type Folder struct {
	ID          int64
	UserID      string
	CompanyID   string
	ParentID    int64 // 0 means top-level
	Priority    int
	Title       locale.Field
	Description locale.Field
}

// DetermineType derives the access scope from ownership fields.
func DetermineType(f Folder) Type {
	switch {
	case f.UserID != "":
		return TypeUser
	case f.CompanyID != "":
		return TypeOrganization
	default:
		return TypeOfficial
	}
}

// Detail is the localized display record returned to clients.
type Detail struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// DetailFor resolves a folder's display fields for the requested locale.
// User-owned content skips locale matching and returns its first value.
func DetailFor(f Folder, loc string) Detail {
	t := DetermineType(f)
	userContent := t == TypeUser
	return Detail{
		ID:          f.ID,
		Title:       f.Title.Resolve(loc, userContent),
		Description: f.Description.Resolve(loc, userContent),
		Type:        string(t),
	}
}

// Node is a folder with its nested children, for hierarchical listings.
type Node struct {
	Detail
	Priority int     `json:"priority"`
	Children []*Node `json:"children"`
}

// BuildTree nests folders under their parents. Folders whose parent is
// missing from the input are promoted to roots, and parent chains that loop
// back on themselves are broken by promoting the revisited folder. Roots and
// children are ordered by descending priority, then ascending ID.
func BuildTree(all []Folder, loc string) []*Node {
	nodes := make(map[int64]*Node, len(all))
	parents := make(map[int64]int64, len(all))
	for _, f := range all {
		nodes[f.ID] = &Node{Detail: DetailFor(f, loc), Priority: f.Priority, Children: []*Node{}}
		parents[f.ID] = f.ParentID
	}

	var roots []*Node
	for _, f := range all {
		node := nodes[f.ID]
		parent, ok := nodes[f.ParentID]
		if f.ParentID == 0 || !ok || hasCycle(f.ID, parents) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots
}

// hasCycle walks the parent chain from id and reports whether it revisits id.
func hasCycle(id int64, parents map[int64]int64) bool {
	seen := map[int64]bool{id: true}
	cur := parents[id]
	for cur != 0 {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		next, ok := parents[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

func sortNodes(ns []*Node) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Priority != ns[j].Priority {
			return ns[i].Priority > ns[j].Priority
		}
		return ns[i].ID < ns[j].ID
	})
}
