package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrProject    = "project"
	attrStatus     = "status_code"
	attrNewCluster = "new_cluster"
)

func projectAttr(project string) attribute.KeyValue {
	return attribute.String(attrProject, project)
}

// statusAttr labels outcomes with the remote terminal status code. The
// status label set is small and fixed, so cardinality stays bounded.
func statusAttr(statusCode string) attribute.KeyValue {
	return attribute.String(attrStatus, statusCode)
}

func newClusterAttr(newCluster bool) attribute.KeyValue {
	return attribute.Bool(attrNewCluster, newCluster)
}
