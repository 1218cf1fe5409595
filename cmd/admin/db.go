package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type entityRow struct {
	WorldID      string `json:"world_id"`
	Index        int    `json:"index"`
	EntityID     string `json:"entity_id"`
	DefinitionID int    `json:"definition_id"`
	Kind         string `json:"kind"`
	Layer        string `json:"layer"`
	X            int    `json:"x"`
	Z            int    `json:"z"`
	Rotation     int    `json:"rotation"`
	Cells        int    `json:"cells"`
	PlacedTick   int64  `json:"placed_tick"`
}

type auditRow struct {
	RunID    string `json:"run_id"`
	Tick     int64  `json:"tick"`
	Seq      int    `json:"seq"`
	Action   string `json:"action"`
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	X        int    `json:"x"`
	Z        int    `json:"z"`
	Rotation int    `json:"rotation"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit (audits)")
	kind := fs.String("kind", "", "kind filter (entities, audits)")
	_ = fs.Parse(args)

	q := "entities"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(os.Stdout, db, q, strings.TrimSpace(*kind), *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-kind KIND] [-limit N] entities|audits|catalogs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(out io.Writer, db *sql.DB, q, kind string, limit int) error {
	switch q {
	case "entities":
		rows, err := queryEntities(db, kind)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "audits":
		rows, err := queryAudits(db, kind, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(out, r)
		}
	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r catalogRow
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
	return nil
}

func queryEntities(db *sql.DB, kind string) ([]entityRow, error) {
	q := `SELECT world_id,entity_index,entity_id,definition_id,kind,layer,x,z,rotation,cells,placed_tick FROM entities`
	var args []any
	if kind != "" {
		q += ` WHERE kind=?`
		args = append(args, kind)
	}
	q += ` ORDER BY world_id, entity_index`
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []entityRow
	for rows.Next() {
		var r entityRow
		if err := rows.Scan(&r.WorldID, &r.Index, &r.EntityID, &r.DefinitionID, &r.Kind, &r.Layer, &r.X, &r.Z, &r.Rotation, &r.Cells, &r.PlacedTick); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryAudits returns the newest audits first. Run ids sort by start time.
func queryAudits(db *sql.DB, kind string, limit int) ([]auditRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT run_id,tick,seq,action,entity_index,kind,x,z,rotation FROM audits`
	var args []any
	if kind != "" {
		q += ` WHERE kind=?`
		args = append(args, kind)
	}
	q += ` ORDER BY run_id DESC, tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []auditRow
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.RunID, &r.Tick, &r.Seq, &r.Action, &r.Index, &r.Kind, &r.X, &r.Z, &r.Rotation); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
