package folders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/promptdock/internal/locale"
)

func official(id, parent int64, title string) Folder {
	return Folder{
		ID:       id,
		ParentID: parent,
		Title:    locale.NewField(title, "en"),
	}
}

func TestDetermineType(t *testing.T) {
	assert.Equal(t, TypeUser, DetermineType(Folder{UserID: "u1"}))
	assert.Equal(t, TypeOrganization, DetermineType(Folder{CompanyID: "c1"}))
	assert.Equal(t, TypeOfficial, DetermineType(Folder{}))
	// User ownership wins over company membership.
	assert.Equal(t, TypeUser, DetermineType(Folder{UserID: "u1", CompanyID: "c1"}))
}

func TestDetailFor_LocalizedOfficialContent(t *testing.T) {
	f := Folder{
		ID:          7,
		Title:       locale.Field{ByLocale: map[string]string{"en": "Writing", "fr": "Rédaction"}},
		Description: locale.Field{ByLocale: map[string]string{"en": "Writing prompts"}},
	}

	d := DetailFor(f, "fr")
	assert.Equal(t, "Rédaction", d.Title)
	// No French description: falls back to English.
	assert.Equal(t, "Writing prompts", d.Description)
	assert.Equal(t, "official", d.Type)
}

func TestDetailFor_UserContentIgnoresLocale(t *testing.T) {
	f := Folder{
		ID:     3,
		UserID: "u1",
		Title:  locale.Field{Plain: "Mes prompts"},
	}
	d := DetailFor(f, "en")
	assert.Equal(t, "Mes prompts", d.Title)
	assert.Equal(t, "user", d.Type)
}

func TestBuildTree_Nesting(t *testing.T) {
	tree := BuildTree([]Folder{
		official(1, 0, "Root A"),
		official(2, 1, "Child A1"),
		official(3, 1, "Child A2"),
		official(4, 3, "Grandchild"),
		official(5, 0, "Root B"),
	}, "en")

	require.Len(t, tree, 2)
	assert.Equal(t, int64(1), tree[0].ID)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, int64(2), tree[0].Children[0].ID)
	require.Len(t, tree[0].Children[1].Children, 1)
	assert.Equal(t, int64(4), tree[0].Children[1].Children[0].ID)
}

func TestBuildTree_OrphanPromotedToRoot(t *testing.T) {
	tree := BuildTree([]Folder{
		official(2, 99, "Orphan"),
	}, "en")

	require.Len(t, tree, 1)
	assert.Equal(t, int64(2), tree[0].ID)
}

func TestBuildTree_CycleGuard(t *testing.T) {
	// 1 → 2 → 1 must not loop forever; both are promoted to roots.
	tree := BuildTree([]Folder{
		official(1, 2, "A"),
		official(2, 1, "B"),
		official(3, 3, "Self"),
	}, "en")

	require.Len(t, tree, 3)
}

func TestBuildTree_Ordering(t *testing.T) {
	a := official(1, 0, "A")
	b := official(2, 0, "B")
	b.Priority = 5

	tree := BuildTree([]Folder{a, b}, "en")
	require.Len(t, tree, 2)
	// Higher priority first, then ascending ID.
	assert.Equal(t, int64(2), tree[0].ID)
	assert.Equal(t, int64(1), tree[1].ID)
}
