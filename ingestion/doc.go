// Package ingestion turns uploaded files into stored, embedded sections.
//
// The Pipeline extracts text, splits it into sections, stores the document
// and embeds its sections in batches through a BatchEmbedder. Each batch is
// persisted as soon as it completes, so a failed batch never discards the
// work of the others. Documents left partially embedded can be completed
// later with Backfill.
package ingestion
