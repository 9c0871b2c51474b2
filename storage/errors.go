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

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateDocument indicates a document with the same content checksum exists.
	ErrDuplicateDocument = errors.New("document already uploaded")

	// ErrVectorAlreadySet indicates an attempt to replace a section's vector.
	ErrVectorAlreadySet = errors.New("section vector already set")

	// ErrCorruptStore indicates a store whose schema version is missing or
	// different from this build's. It cannot be opened.
	ErrCorruptStore = errors.New("store is corrupt or from an incompatible version")

	// ErrStoreNotEmpty indicates an import into a store that already holds data.
	ErrStoreNotEmpty = errors.New("store is not empty")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
