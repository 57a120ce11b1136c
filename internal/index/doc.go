// Package index maintains per-commit embeddings and answers
// nearest-by-cosine queries over them with a brute-force scan.
package index
