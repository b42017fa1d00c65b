// ABOUTME: SQLite database schema for tutor storage
// ABOUTME: Creates session transcript and passage index tables
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Sessions table (one row per conversation)
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    title TEXT,
    last_topic TEXT,
    status TEXT DEFAULT 'ACTIVE',
    user_turns INTEGER DEFAULT 0,
    turn_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Turns table (one row per dispatch cycle, committed per user turn)
CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    user_turn INTEGER NOT NULL,
    cycle INTEGER NOT NULL,
    utterance TEXT NOT NULL,
    agent TEXT NOT NULL,
    rationale TEXT,
    artifact TEXT,
    satisfied INTEGER DEFAULT 0,
    topic TEXT,
    summary TEXT,
    annotations TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Documents table (ingested study material)
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    title TEXT,
    content TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Chunks table (document → paragraph → sentence hierarchy)
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    parent_id TEXT,
    chunk_type TEXT NOT NULL,
    content TEXT NOT NULL,
    position INTEGER DEFAULT 0
);

-- Embeddings table (vector storage)
CREATE TABLE IF NOT EXISTS embeddings (
    id TEXT PRIMARY KEY,
    chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    document_id TEXT REFERENCES documents(id) ON DELETE CASCADE,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, user_turn, cycle);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_type ON chunks(chunk_type);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2
