// Package embedder generates vector embeddings for commit text.
//
// Three providers are available: ollama (default, local model server),
// openai (hosted API), and local (deterministic hash-derived vectors, no
// network). Provider selection comes from DEVLOG_EMBEDDING_PROVIDER or is
// inferred from available credentials.
//
// All providers share an LRU cache keyed by content hash and exponential
// backoff retry on transient API failures. The Lazy wrapper gives the
// process-wide load-once behavior: construction happens on the first Embed
// call and the instance is reused afterward.
package embedder
