//
// Tencent is pleased to support the open source community by making trpc-canvas-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-canvas-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a sqlite-backed storage service and run log sink
// sharing one database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"trpc.group/trpc-go/trpc-canvas-go/graph"
	"trpc.group/trpc-go/trpc-canvas-go/runlog"
)

// Service implements storage.Service and runlog.Sink on sqlite.
type Service struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
func New(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Service{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		x REAL NOT NULL DEFAULT 0,
		y REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 0,
		height REAL NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0,
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		UNIQUE(project_id, id)
	);

	CREATE TABLE IF NOT EXISTS edges (
		project_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		source_handle TEXT NOT NULL DEFAULT '',
		target_handle TEXT NOT NULL DEFAULT '',
		seq INTEGER PRIMARY KEY AUTOINCREMENT
	);

	CREATE TABLE IF NOT EXISTS run_records (
		run_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		output_hash TEXT NOT NULL,
		logs TEXT NOT NULL DEFAULT '{}',
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		UNIQUE(project_id, node_id, run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id);
	CREATE INDEX IF NOT EXISTS idx_edges_project ON edges(project_id);
	CREATE INDEX IF NOT EXISTS idx_run_records_node ON run_records(project_id, node_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetNode returns one node or graph.ErrNodeNotFound.
func (s *Service) GetNode(ctx context.Context, projectID, nodeID string) (*graph.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, content, metadata, x, y, width, height, hidden
		 FROM nodes WHERE project_id = ? AND id = ?`, projectID, nodeID)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	return node, err
}

// ListNodes returns every node in insertion order.
func (s *Service) ListNodes(ctx context.Context, projectID string) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, content, metadata, x, y, width, height, hidden
		 FROM nodes WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// ListEdges returns every edge in insertion order.
func (s *Service) ListEdges(ctx context.Context, projectID string) ([]*graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, label, source_handle, target_handle
		 FROM edges WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Label, &e.SourceHandle, &e.TargetHandle); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CreateNode persists a new node, assigning an id when missing.
func (s *Service) CreateNode(ctx context.Context, projectID string, node *graph.Node) (*graph.Node, error) {
	stored := *node
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if err := insertNode(ctx, s.db, projectID, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// CreateNodeWithEdge persists the node and its connecting edge in a single
// transaction.
func (s *Service) CreateNodeWithEdge(ctx context.Context, projectID string, node *graph.Node, edge *graph.Edge) (*graph.Node, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stored := *node
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if err := insertNode(ctx, tx, projectID, &stored); err != nil {
		return nil, err
	}
	e := *edge
	if e.To == "" {
		e.To = stored.ID
	}
	if err := insertEdge(ctx, tx, projectID, &e); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &stored, nil
}

// AddEdge persists a new edge.
func (s *Service) AddEdge(ctx context.Context, projectID string, edge *graph.Edge) error {
	return insertEdge(ctx, s.db, projectID, edge)
}

// UpdateNodeMetadata merges patch into the stored metadata.
func (s *Service) UpdateNodeMetadata(ctx context.Context, projectID, nodeID string, patch *graph.Metadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT metadata FROM nodes WHERE project_id = ? AND id = ?`,
		projectID, nodeID).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	if err != nil {
		return err
	}

	var meta graph.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return fmt.Errorf("decode metadata for node %q: %w", nodeID, err)
	}
	meta.Merge(patch)
	encoded, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET metadata = ? WHERE project_id = ? AND id = ?`,
		string(encoded), projectID, nodeID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateNodeContent replaces the stored content.
func (s *Service) UpdateNodeContent(ctx context.Context, projectID, nodeID, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET content = ? WHERE project_id = ? AND id = ?`,
		content, projectID, nodeID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("node %q in project %q: %w", nodeID, projectID, graph.ErrNodeNotFound)
	}
	return nil
}

// Append stores one run record.
func (s *Service) Append(ctx context.Context, record *runlog.Record) error {
	logs, err := json.Marshal(&record.Logs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_records
		 (run_id, project_id, node_id, started_at, finished_at, status, input_hash, output_hash, logs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID, record.ProjectID, record.NodeID,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(record.Status), record.InputHash, record.OutputHash, string(logs))
	return err
}

// ListByNode returns the node's run records, oldest first.
func (s *Service) ListByNode(ctx context.Context, projectID, nodeID string) ([]*runlog.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, project_id, node_id, started_at, finished_at, status, input_hash, output_hash, logs
		 FROM run_records WHERE project_id = ? AND node_id = ? ORDER BY seq`,
		projectID, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*runlog.Record
	for rows.Next() {
		var r runlog.Record
		var started, finished, status, logs string
		if err := rows.Scan(&r.RunID, &r.ProjectID, &r.NodeID, &started, &finished,
			&status, &r.InputHash, &r.OutputHash, &logs); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, err
		}
		r.Status = runlog.Status(status)
		if err := json.Unmarshal([]byte(logs), &r.Logs); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertNode(ctx context.Context, db execer, projectID string, node *graph.Node) error {
	meta := node.Metadata
	if meta == nil {
		meta = &graph.Metadata{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO nodes (project_id, id, type, content, metadata, x, y, width, height, hidden)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, node.ID, string(node.Type), node.Content, string(encoded),
		node.Position.X, node.Position.Y, node.Width, node.Height, boolToInt(node.Hidden))
	return err
}

func insertEdge(ctx context.Context, db execer, projectID string, edge *graph.Edge) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO edges (project_id, from_id, to_id, label, source_handle, target_handle)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		projectID, edge.From, edge.To, edge.Label, edge.SourceHandle, edge.TargetHandle)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*graph.Node, error) {
	var n graph.Node
	var typ, meta string
	var hidden int
	if err := row.Scan(&n.ID, &typ, &n.Content, &meta,
		&n.Position.X, &n.Position.Y, &n.Width, &n.Height, &hidden); err != nil {
		return nil, err
	}
	n.Type = graph.NodeType(typ)
	n.Hidden = hidden != 0
	var m graph.Metadata
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return nil, fmt.Errorf("decode metadata for node %q: %w", n.ID, err)
	}
	n.Metadata = &m
	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
