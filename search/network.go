package search

import (
	"context"

	"github.com/poiesic/stdgap/core"
)

// DefaultNetworkThreshold is the similarity above which two documents are linked.
const DefaultNetworkThreshold = 0.8

// BuildNetwork links documents whose mean section embeddings have a cosine
// similarity above threshold. Every document is a node; documents without
// embedded sections have no edges.
func BuildNetwork(ctx context.Context, store Store, threshold float64) (*core.Network, error) {
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	network := &core.Network{
		Nodes:     make([]core.NetworkNode, 0, len(docs)),
		Edges:     []core.NetworkEdge{},
		Threshold: threshold,
	}
	means := make([][]float32, len(docs))
	for i, doc := range docs {
		network.Nodes = append(network.Nodes, core.NetworkNode{
			DocumentId: doc.Id,
			Filename:   doc.Filename,
			Sections:   doc.SectionCount,
		})

		var vectors [][]float32
		err := store.ForEachEmbedded(ctx, doc.Id, func(section *core.Section) error {
			vectors = append(vectors, section.Vector)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if means[i], err = Mean(vectors); err != nil {
			return nil, err
		}
	}

	for i := range docs {
		if means[i] == nil {
			continue
		}
		for j := i + 1; j < len(docs); j++ {
			if means[j] == nil {
				continue
			}
			sim, err := Cosine(means[i], means[j])
			if err != nil {
				return nil, err
			}
			if sim > threshold {
				network.Edges = append(network.Edges, core.NetworkEdge{
					Source:     docs[i].Id,
					Target:     docs[j].Id,
					Similarity: sim,
				})
			}
		}
	}
	return network, nil
}
