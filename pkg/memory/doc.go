// Package memory stores deduplicated textual observations and retrieves
// them through hybrid lexical + semantic search.
//
// Invariants:
// - At most one live observation per content hash; duplicate stores return
//   the original id and skip embedding generation.
// - Search fuses FTS and vector candidates with reciprocal rank fusion and
//   applies filters after fusion, before truncation.
// - A vector index failure degrades search to FTS-only; it never fails the
//   whole search.
//
// The lexical index is SQLite FTS5, which mattn/go-sqlite3 only compiles in
// under the sqlite_fts5 build tag. Build and test with:
//
//	go build -tags sqlite_fts5 ./...
//	go test -tags sqlite_fts5 ./...
//
// Usage:
//
//	db, _ := memory.OpenDatabase("/data/mnemo.db")
//	repo, _ := memory.NewSQLiteRepository(db, logger)
//	vectors, _ := memory.NewSQLiteVectorIndex(db, embedder.Dimension(), logger)
//	svc, _ := memory.NewService(memory.ServiceConfig{
//		ProjectID:   "myproject",
//		Repository:  repo,
//		Embedding:   embedder,
//		VectorIndex: vectors,
//		Logger:      logger,
//	})
//	id, deduplicated, _ := svc.StoreObservation(ctx, memory.StoreObservationInput{
//		Content: "Use OAuth2 for auth",
//		Type:    memory.TypeDecision,
//	})
//	_ = id
//	_ = deduplicated
package memory
