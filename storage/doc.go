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


// Package storage provides the storage abstraction layer for stdgap.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. The production backend lives in storage/badger; whole-store
// snapshots are written and read by storage/snapshot.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := badger.NewStore(path)  // returns storage.Store interface
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - DocumentRepository: uploaded documents and their sections
//   - SectionRepository: section lookup and vector assignment
//   - AnalysisRepository: gaps and recommendations
//   - Store: all of the above plus Export/Import and Close
//
// # Persistence Rules
//
// A store carries a schema version. Opening a store written with a different
// version fails with ErrCorruptStore; there is no migration. Every vector in a
// store has the same length, recorded on first write; a vector of any other
// length is rejected with core.ErrDimensionMismatch. A section's vector is
// written once and never replaced.
//
// Files outside the store (snapshots, config) are written with WriteFileAtomic.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage
