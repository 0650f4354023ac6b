// Package embedder turns chunk text into vectors for similarity search.
//
// Two providers exist:
//
//   - local: deterministic hashed bag-of-words vectors computed in process.
//     No network access, stable across runs, good enough for lexical
//     similarity. This is the default.
//   - openai: the OpenAI-compatible /embeddings endpoint, with retries and
//     exponential backoff on transient failures.
//
// Any provider can be wrapped in an LRU cache keyed by the SHA-256 of the
// input text:
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vec, err := emb.Embed(ctx, "def parse(path): ...")
//
// Vectors returned by every provider are unit length, so cosine similarity
// reduces to a dot product.
package embedder
