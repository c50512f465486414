// Package queryspec defines the declarative query spec that the
// SQL compiler consumes.
//
// A spec names a source table, an ordered list of fields (plain
// column names or nested relationships), an optional boolean filter tree,
// ordering and pagination:
//
//	{
//	  "source_table": "npcs",
//	  "fields": ["id", "name",
//	    {"child_table": "npc_items", "join_on": {"npcs.id": "npc_items.npc_id"},
//	     "fields": ["item_id"]}],
//	  "filter": {"logic": "and", "conditions": [
//	    {"field": "npcs.level", "operator": ">", "value": 5}]},
//	  "order_by": [{"field": "npcs.level", "direction": "desc"}],
//	  "limit": 10
//	}
//
// FieldEntry and FilterNode are sealed interfaces: only types in this package
// implement them, so the compiler's type switches are exhaustive.
//
// Parse expects a document that already passed schema validation; it only
// rejects shapes it cannot represent. Lint reports constructs that compile
// but rely on lenient behavior, such as references to tables that no
// relationship declares.
package queryspec
