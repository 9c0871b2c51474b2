package badger

import (
	"encoding/binary"

	"github.com/poiesic/stdgap/core"
)

// Key prefixes for different data types
const (
	metaSchemaKey    = "meta:schema"
	metaDimKey       = "meta:dim"
	sequencePrefix   = "seq:"
	documentPrefix   = "doc:"
	checksumPrefix   = "docsum:"
	sectionPrefix    = "sec:"
	sectionIDPrefix  = "secid:"
	gapPrefix        = "gap:"
	recommendPrefix  = "rec:"
	documentSequence = "document"
	sectionSequence  = "section"
	gapSequence      = "gap"
	recSequence      = "recommendation"
)

func makeSequenceKey(name string) []byte {
	return []byte(sequencePrefix + name)
}

// makeDocumentKey generates a key for a document by ID.
// IDs are big-endian so iteration follows ID order.
func makeDocumentKey(id core.ID) []byte {
	return appendID([]byte(documentPrefix), id)
}

// makeChecksumKey generates the duplicate-detection index key.
func makeChecksumKey(checksum string) []byte {
	return []byte(checksumPrefix + checksum)
}

// makeSectionKey generates the primary key of a section.
// Format: prefix:documentID:ordinal, so a document's sections are contiguous
// and ordered.
func makeSectionKey(docID core.ID, ordinal int) []byte {
	buf := appendID([]byte(sectionPrefix), docID)
	return binary.BigEndian.AppendUint32(buf, uint32(ordinal))
}

// makeDocumentSectionsPrefix generates the prefix shared by a document's sections.
func makeDocumentSectionsPrefix(docID core.ID) []byte {
	return appendID([]byte(sectionPrefix), docID)
}

// sectionDocumentID extracts the document ID from a section primary key.
func sectionDocumentID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(sectionPrefix):]))
}

// makeSectionIDKey generates the index key mapping a section ID to its primary key.
func makeSectionIDKey(id core.ID) []byte {
	return appendID([]byte(sectionIDPrefix), id)
}

// makeGapKey generates a key for a gap by ID.
func makeGapKey(id core.ID) []byte {
	return appendID([]byte(gapPrefix), id)
}

// makeRecommendationKey generates a composite key.
// Format: prefix:gapID:recommendationID
func makeRecommendationKey(gapID, recID core.ID) []byte {
	return appendID(makeGapRecommendationsPrefix(gapID), recID)
}

// makeGapRecommendationsPrefix generates the prefix shared by a gap's recommendations.
func makeGapRecommendationsPrefix(gapID core.ID) []byte {
	return appendID([]byte(recommendPrefix), gapID)
}

func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}
