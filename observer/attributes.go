package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by the observer wrappers.
var (
	AttrProvider        = attribute.Key("embedding.provider")
	AttrModel           = attribute.Key("embedding.model")
	AttrEmbedTextCount  = attribute.Key("embedding.text_count")
	AttrEmbedDimensions = attribute.Key("embedding.dimensions")

	AttrSourceID   = attribute.Key("ingest.source_id")
	AttrJobStatus  = attribute.Key("ingest.status")
	AttrChunkCount = attribute.Key("ingest.chunks")

	AttrStrategy  = attribute.Key("retrieval.strategy")
	AttrItemCount = attribute.Key("retrieval.items")
)
