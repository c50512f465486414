package queryspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Minimal(t *testing.T) {
	spec, err := Parse([]byte(`{"source_table": "npcs", "fields": ["id", "name"]}`))
	require.NoError(t, err)

	assert.Equal(t, "npcs", spec.SourceTable)
	assert.Equal(t, Fields{Column{Name: "id"}, Column{Name: "name"}}, spec.Fields)
	assert.Nil(t, spec.Filter)
	assert.Nil(t, spec.Limit)
	assert.Nil(t, spec.Offset)
}

func TestParse_Relationships(t *testing.T) {
	spec, err := Parse([]byte(`{
		"source_table": "npcs",
		"fields": [
			"id",
			{
				"type": "one_to_many",
				"child_table": "npc_items",
				"as": "items",
				"join_on": {"npcs.id": "items.npc_id", "npcs.realm": "items.realm"},
				"fields": ["item_id", {"lookup_table": "items_catalog", "join_on": {"items.item_id": "items_catalog.id"}, "fields": ["label"]}]
			},
			{"through_table": "npc_factions", "join_on": {"npcs.id": "npc_factions.npc_id"}, "fields": ["name"]}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, spec.Fields, 3)

	rel, ok := spec.Fields[1].(*Relationship)
	require.True(t, ok)
	assert.Equal(t, "one_to_many", rel.Type)
	assert.Equal(t, "npc_items", rel.ChildTable)
	assert.Equal(t, "items", rel.As)
	assert.False(t, rel.Bridged())
	assert.Equal(t, JoinOn{
		{Left: "npcs.id", Right: "items.npc_id"},
		{Left: "npcs.realm", Right: "items.realm"},
	}, rel.JoinOn)

	require.Len(t, rel.Fields, 2)
	nested, ok := rel.Fields[1].(*Relationship)
	require.True(t, ok)
	assert.Equal(t, "items_catalog", nested.LookupTable)

	bridge, ok := spec.Fields[2].(*Relationship)
	require.True(t, ok)
	assert.True(t, bridge.Bridged())
}

func TestParse_JoinOnKeepsDeclarationOrder(t *testing.T) {
	spec, err := Parse([]byte(`{
		"source_table": "a",
		"fields": [{"child_table": "b", "join_on": {"z.x": "b.x", "a.y": "b.y", "m.k": "b.k"}}]
	}`))
	require.NoError(t, err)

	rel := spec.Fields[0].(*Relationship)
	require.Len(t, rel.JoinOn, 3)
	assert.Equal(t, "z.x", rel.JoinOn[0].Left)
	assert.Equal(t, "a.y", rel.JoinOn[1].Left)
	assert.Equal(t, "m.k", rel.JoinOn[2].Left)
}

func TestParse_FilterTree(t *testing.T) {
	spec, err := Parse([]byte(`{
		"source_table": "npcs",
		"fields": ["id"],
		"filter": {
			"logic": "and",
			"conditions": [
				{"field": "npcs.level", "operator": ">", "value": 5},
				{"logic": "OR", "conditions": [
					{"field": "npcs.gold", "operator": "<=", "value": 2.5},
					{"field": "npcs.tags", "operator": "in", "value": [1, "x", null]},
					{"field": "npcs.deleted_at", "operator": "is", "value": null}
				]}
			]
		}
	}`))
	require.NoError(t, err)

	root, ok := spec.Filter.(*Combinator)
	require.True(t, ok)
	assert.Equal(t, "and", root.Logic)
	require.Len(t, root.Conditions, 2)

	leaf, ok := root.Conditions[0].(Condition)
	require.True(t, ok)
	assert.Equal(t, Condition{Field: "npcs.level", Operator: ">", Value: int64(5)}, leaf)

	inner, ok := root.Conditions[1].(*Combinator)
	require.True(t, ok)
	require.Len(t, inner.Conditions, 3)
	assert.Equal(t, 2.5, inner.Conditions[0].(Condition).Value)
	assert.Equal(t, []any{int64(1), "x", nil}, inner.Conditions[1].(Condition).Value)
	assert.Nil(t, inner.Conditions[2].(Condition).Value)
}

func TestParse_LeafFilterWithoutValue(t *testing.T) {
	spec, err := Parse([]byte(`{"source_table": "npcs", "fields": ["id"], "filter": {"field": "npcs.x", "operator": "is"}}`))
	require.NoError(t, err)

	cond, ok := spec.Filter.(Condition)
	require.True(t, ok)
	assert.Nil(t, cond.Value)
}

func TestParse_OrderAndPagination(t *testing.T) {
	spec, err := Parse([]byte(`{
		"source_table": "npcs", "fields": ["id"],
		"order_by": [{"field": "npcs.level", "direction": "DESC"}, {"table": "npcs", "column": "name"}],
		"limit": 10, "offset": 0
	}`))
	require.NoError(t, err)

	require.Len(t, spec.OrderBy, 2)
	assert.Equal(t, OrderSpec{Field: "npcs.level", Direction: "DESC"}, spec.OrderBy[0])
	assert.Equal(t, OrderSpec{Table: "npcs", Column: "name"}, spec.OrderBy[1])
	require.NotNil(t, spec.Limit)
	limit, err := spec.Limit.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(10), limit)
	require.NotNil(t, spec.Offset)
	offset, err := spec.Offset.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)
}

func TestParse_NonIntegerBoundsDecode(t *testing.T) {
	spec, err := Parse([]byte(`{"source_table": "npcs", "fields": ["id"], "limit": 10.5, "offset": "3"}`))
	require.NoError(t, err)

	require.NotNil(t, spec.Limit)
	_, err = spec.Limit.Int64()
	assert.Error(t, err)
	assert.Equal(t, "10.5", spec.Limit.String())

	require.NotNil(t, spec.Offset)
	_, err = spec.Offset.Int64()
	assert.Error(t, err)
}

func TestBound(t *testing.T) {
	n, err := NewBound(25).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)

	for _, raw := range []string{`1e3`, `true`, `99999999999999999999`, `[1]`} {
		var b Bound
		require.NoError(t, b.UnmarshalJSON([]byte(raw)))
		_, err := b.Int64()
		assert.Error(t, err, raw)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":             `{`,
		"field entry number":   `{"source_table": "a", "fields": [1]}`,
		"fields not array":     `{"source_table": "a", "fields": "id"}`,
		"join_on array":        `{"source_table": "a", "fields": [{"child_table": "b", "join_on": ["a.id"]}]}`,
		"join_on non string":   `{"source_table": "a", "fields": [{"child_table": "b", "join_on": {"a.id": 3}}]}`,
		"filter not object":    `{"source_table": "a", "fields": ["id"], "filter": [1]}`,
		"conditions not array": `{"source_table": "a", "fields": ["id"], "filter": {"logic": "and", "conditions": {}}}`,
		"fractional limit":     `{"source_table": "a", "fields": ["id"], "limit": 1.5}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
