package driver

// Ontology layout: every subject or object is a (:Resource {uri, label, type})
// and every predicate a [:RELATION {name}] between two resources.

var IndexQueries = []string{
	"CREATE INDEX resource_uri IF NOT EXISTS FOR (n:Resource) ON (n.uri)",
	"CREATE INDEX ON :Resource(uri);",
}

const (
	NeighbourhoodByLabelQuery = `
		MATCH (c:Resource)
		WHERE c.label = $object OR c.uri ENDS WITH ('#' + $object)
		WITH c LIMIT 1
		OPTIONAL MATCH (c)-[r:RELATION]-(o:Resource)
		WHERE o <> c
		RETURN c.uri AS center_uri, c.label AS center_label,
			startNode(r).uri AS s_uri, startNode(r).label AS s_label,
			r.name AS p,
			endNode(r).uri AS o_uri, endNode(r).label AS o_label
		LIMIT $limit
	`

	NeighbourhoodByURIQuery = `
		MATCH (c:Resource {uri: $uri})
		OPTIONAL MATCH (c)-[r:RELATION]-(o:Resource)
		WHERE o <> c
		RETURN c.uri AS center_uri, c.label AS center_label,
			startNode(r).uri AS s_uri, startNode(r).label AS s_label,
			r.name AS p,
			endNode(r).uri AS o_uri, endNode(r).label AS o_label
		LIMIT $limit
	`

	FullGraphQuery = `
		MATCH (s:Resource)-[r:RELATION]->(o:Resource)
		RETURN s.uri AS s_uri, s.label AS s_label,
			r.name AS p,
			o.uri AS o_uri, o.label AS o_label
		LIMIT $limit
	`

	OntologyTypesQuery = `
		MATCH (s:Resource)
		WHERE s.type IS NOT NULL AND s.label IS NOT NULL
		WITH s.type AS type, collect(DISTINCT s.label) AS examples
		RETURN type, examples
		ORDER BY type
	`

	OntologyRelationsQuery = `
		MATCH ()-[r:RELATION]->()
		RETURN DISTINCT r.name AS name
		ORDER BY name
	`

	SaveResourceQuery = `
		MERGE (n:Resource {uri: $uri})
		SET n.label = $label,
			n.type = $type
		RETURN n.uri AS uri
	`

	SaveRelationQuery = `
		MERGE (s:Resource {uri: $s_uri})
		MERGE (o:Resource {uri: $o_uri})
		MERGE (s)-[r:RELATION {name: $p}]->(o)
		RETURN r.name AS name
	`
)
