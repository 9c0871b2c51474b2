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


// Package ai provides abstractions for the external AI services used by stdgap.
//
// Two narrow interfaces cover everything the rest of the module needs:
//
//   - Embedder: batch-in/batch-out text embeddings
//   - Completer: prompt-in/text-out chat completions
//
// AIProvider bundles both behind one lifecycle.
//
// # Configuration
//
// Config is an explicit value passed to every client constructor. Nothing in
// this package or its implementations reads API keys from the environment.
//
// # Failures and Retry
//
// Implementations classify service failures by wrapping one of ErrTransient,
// ErrRateLimited or ErrPermanent. Retry applies a RetryPolicy to any
// operation:
//
//   - transient errors back off exponentially up to MaxAttempts
//   - rate-limit errors pause for RateLimitPause, bounded by MaxRateLimitWaits,
//     without using up MaxAttempts
//   - permanent errors and cancellation return immediately
//
// A per-attempt deadline (AttemptTimeout) turns a slow call into a transient
// failure.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and read call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(key))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	var vectors [][]float32
//	attempts, err := ai.Retry(ctx, cfg.RetryPolicy(), func(ctx context.Context) error {
//	    var err error
//	    vectors, err = provider.Embedder().EmbedTexts(ctx, texts)
//	    return err
//	})
package ai
