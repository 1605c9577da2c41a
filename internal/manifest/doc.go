// Package manifest persists all pipeline state in SQLite: movies, videos,
// per-stage status rows, bilingual metadata entities, glossary terms, and the
// translation cache built from previously translated entities.
//
// The store is the single owner of durable state. Other components receive
// Movie and Video values as transient views, mutate them, and flush changes
// back through a Session, which wraps one SQL transaction per
// movie-processing run.
package manifest
