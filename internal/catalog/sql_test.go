package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromSQLStatementParsesAttributes(t *testing.T) {
	schema, err := FromSQLStatement("CREATE TABLE L (id INT, name VARCHAR(20) NOT NULL UNIQUE)")
	require.NoError(t, err)
	require.Equal(t, "L", schema.Name)
	require.Len(t, schema.Attrs, 2)

	require.Equal(t, Attribute{Name: "id", Type: Int}, schema.Attrs[0])
	require.Equal(t, Attribute{Name: "name", Type: Varchar, MaxSize: 20, NotNull: true, Unique: true}, schema.Attrs[1])
}

func TestFromSQLStatementLowercaseKeyword(t *testing.T) {
	schema, err := FromSQLStatement("create table R (city CHAR(10))")
	require.NoError(t, err)
	require.Equal(t, "R", schema.Name)
	require.Equal(t, Attribute{Name: "city", Type: Char, MaxSize: 10}, schema.Attrs[0])
}

func TestFromSQLStatementRejectsWrongPrefix(t *testing.T) {
	_, err := FromSQLStatement("SELECT * FROM L")
	require.Error(t, err)
}

func TestFromSQLStatementRejectsMissingLength(t *testing.T) {
	_, err := FromSQLStatement("CREATE TABLE L (name VARCHAR)")
	require.Error(t, err)
}

func TestSharedAttributeAndResultSchema(t *testing.T) {
	left, err := FromSQLStatement("CREATE TABLE L (id INT, name VARCHAR(10))")
	require.NoError(t, err)
	right, err := FromSQLStatement("CREATE TABLE R (id INT, city VARCHAR(10))")
	require.NoError(t, err)

	key, err := SharedAttribute(left, right)
	require.NoError(t, err)
	require.Equal(t, "id", key)

	result, err := ResultSchema(left, right)
	require.NoError(t, err)
	require.Equal(t, "T", result.Name)
	require.Equal(t, []string{"id", "name", "city"}, result.AttrNames())
}

func TestCatalogAddAndLookup(t *testing.T) {
	c := New()
	schema := &TableSchema{Name: "L", Attrs: []Attribute{{Name: "id", Type: Int}}}
	c.AddTableSchema(schema, "L")

	got, err := c.Lookup("L")
	require.NoError(t, err)
	require.Same(t, schema, got)

	_, err = c.Lookup("missing")
	require.Error(t, err)
}
