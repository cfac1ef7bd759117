package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

func TestMappingJSON_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store := NewMappingJSON(path, zap.NewNop())
	assert.Empty(t, store.All())

	require.NoError(t, store.Set("memberFirst", models.Expr("Upper(Trim(FirstName))")))
	require.NoError(t, store.Set(models.EmployerGroupsField, models.Group(models.EmployerGroup{GroupName: "GRP_NM", Zip: "ZIP5"})))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "Upper(Trim(FirstName))", onDisk["memberFirst"])
	assert.Equal(t, map[string]any{
		"groupName": "GRP_NM", "groupStatus": "", "addressLine1": "", "addressLine2": "", "zip": "ZIP5",
	}, onDisk["employerGroups"])

	reloaded := NewMappingJSON(path, zap.NewNop())
	assert.Equal(t, store.All(), reloaded.All())
}

func TestMappingJSON_MergeAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mappings.json")
	store := NewMappingJSON(path, zap.NewNop())

	require.NoError(t, store.Set("ssn", models.Expr("SSN")))
	require.NoError(t, store.Merge(models.MappingSet{
		"ssn":      models.Expr("Trim(SSN)"),
		"memberID": models.Expr("MBR_ID"),
	}))
	assert.Equal(t, models.MappingSet{
		"ssn":      models.Expr("Trim(SSN)"),
		"memberID": models.Expr("MBR_ID"),
	}, store.All())

	require.NoError(t, store.Clear())
	assert.Empty(t, store.All())
	assert.Empty(t, NewMappingJSON(path, zap.NewNop()).All())
}

func TestMappingJSON_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewMappingJSON(path, zap.NewNop())
	assert.Empty(t, store.All())
}

func TestMappingJSON_AllReturnsCopy(t *testing.T) {
	store := NewMappingJSON(filepath.Join(t.TempDir(), "m.json"), zap.NewNop())
	require.NoError(t, store.Set(models.EmployerGroupsField, models.Group(models.EmployerGroup{GroupName: "A"})))

	snapshot := store.All()
	snapshot[models.EmployerGroupsField].Group.GroupName = "changed"
	assert.Equal(t, "A", store.All()[models.EmployerGroupsField].Group.GroupName)
}
