// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/poiesic/stdgap/core"
)

// codec encodes stored records. ConfigStd keeps the output identical to
// encoding/json, so snapshots and records share one format.
var codec = sonic.ConfigStd

// MarshalID serializes an ID to 8 big-endian bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id needs 8 bytes, got %d", ErrTruncatedData, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	return marshal(doc)
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return unmarshal[core.Document](data)
}

// MarshalSection serializes a Section, including its vector, to bytes.
func MarshalSection(section *core.Section) ([]byte, error) {
	return marshal(section)
}

// UnmarshalSection deserializes a Section from bytes.
func UnmarshalSection(data []byte) (*core.Section, error) {
	return unmarshal[core.Section](data)
}

// MarshalGap serializes a Gap to bytes.
func MarshalGap(gap *core.Gap) ([]byte, error) {
	return marshal(gap)
}

// UnmarshalGap deserializes a Gap from bytes.
func UnmarshalGap(data []byte) (*core.Gap, error) {
	return unmarshal[core.Gap](data)
}

// MarshalRecommendation serializes a Recommendation to bytes.
func MarshalRecommendation(rec *core.Recommendation) ([]byte, error) {
	return marshal(rec)
}

// UnmarshalRecommendation deserializes a Recommendation from bytes.
func UnmarshalRecommendation(data []byte) (*core.Recommendation, error) {
	return unmarshal[core.Recommendation](data)
}

func marshal(v any) ([]byte, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrTruncatedData)
	}
	var v T
	if err := codec.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}
