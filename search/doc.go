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


// Package search ranks document sections by cosine similarity to a query.
//
// Rank is the pure ranking step. Searcher embeds query text with an
// ai.Embedder, streams embedded sections out of the store and ranks them.
// BuildNetwork links documents whose mean section embeddings are similar.
package search
