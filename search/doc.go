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


// Package search provides hybrid vector and lexical retrieval with rank
// fusion.
//
// The Searcher type combines:
//   - Tiered cosine-similarity search over document and chunk embeddings,
//     degrading from a store-native primitive to bounded in-memory scoring
//     to a full scan
//   - BM25 lexical scoring with a weighted keyword-containment fallback
//   - Reciprocal rank fusion or weighted score fusion of the two rankings
//   - A bounded semantic cache serving near-duplicate queries
//
// An embedding outage degrades searches to lexical-only rather than
// failing them, and a query that matches nothing returns an empty result
// set, not an error.
package search
