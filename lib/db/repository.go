package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/rom"
)

// UserMetadata is the subset of a node's fields a caller may set directly
// and that survive an edit or an import-with-overwrite. The content hash
// and header descriptor are never part of it: identity and format facts
// are immutable once a node exists.
type UserMetadata struct {
	Title       string
	SourceURL   string
	Version     string
	ReleaseDate string
	Tags        []string
	Description string
}

// NodeRow is a full row from the nodes table.
type NodeRow struct {
	ID               int64
	SHA256           [32]byte
	Filename         string
	Title            string
	RomType          rom.Type
	Header           *rom.Header // nil if the row carries no header descriptor
	SourceURL        string
	Version          string
	ReleaseDate      string
	Tags             []string
	Description      string
	SourceFileHeader []byte
}

// EdgeRow is a full row from the edges table.
type EdgeRow struct {
	ID       int64
	SourceID int64
	TargetID int64
	DiffPath string
	DiffSize int64
}

// Repository is typed CRUD over the relational store. It borrows the
// connection for the duration of each call; there is no outer transaction
// scope exposed; callers needing crash-consistency across several calls
// compose it themselves.
type Repository struct {
	conn *sql.DB
}

// NewRepository wraps an already-opened, already-migrated connection.
func NewRepository(conn *sql.DB) *Repository {
	return &Repository{conn: conn}
}

// InsertNode inserts a new node row, returning its assigned id.
func (r *Repository) InsertNode(meta rom.Metadata, title string, user UserMetadata) (int64, error) {
	hashHex := rom.FormatHash(meta.SHA256)

	if existing, err := r.GetNodeByHash(meta.SHA256); err != nil {
		return 0, err
	} else if existing != nil {
		return 0, &dromoserr.RomAlreadyExists{Hash: hashHex}
	}

	var prg, chr, mapper, submapper sql.NullInt64
	var hasTrainer, hasBattery, isNES2 sql.NullBool
	var mirroring sql.NullString
	if meta.Header != nil {
		prg = sql.NullInt64{Int64: int64(meta.Header.PRGROMSize), Valid: true}
		chr = sql.NullInt64{Int64: int64(meta.Header.CHRROMSize), Valid: true}
		mapper = sql.NullInt64{Int64: int64(meta.Header.Mapper), Valid: true}
		submapper = sql.NullInt64{Int64: int64(meta.Header.Submapper), Valid: true}
		hasTrainer = sql.NullBool{Bool: meta.Header.HasTrainer, Valid: true}
		hasBattery = sql.NullBool{Bool: meta.Header.HasBattery, Valid: true}
		isNES2 = sql.NullBool{Bool: meta.Header.IsNES2, Valid: true}
		mirroring = sql.NullString{String: meta.Header.Mirroring.String(), Valid: true}
	}

	tags, err := encodeTags(user.Tags)
	if err != nil {
		return 0, err
	}

	var filename sql.NullString
	if meta.Filename != "" {
		filename = sql.NullString{String: meta.Filename, Valid: true}
	}

	res, err := r.conn.Exec(
		`INSERT INTO nodes (sha256, filename, title, rom_type, prg_rom_size, chr_rom_size,
			has_trainer, mapper, mirroring, has_battery, is_nes2, nes2_submapper,
			source_url, version, release_date, tags, description, source_file_header)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hashHex, filename, title, string(meta.Type), prg, chr,
		hasTrainer, mapper, mirroring, hasBattery, isNES2, submapper,
		nullableString(user.SourceURL), nullableString(user.Version), nullableString(user.ReleaseDate),
		tags, nullableString(user.Description), meta.RawHeaderBytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertEdge inserts a new edge row, returning its assigned id.
func (r *Repository) InsertEdge(srcID, tgtID int64, diffPath string, diffSize int64) (int64, error) {
	var exists int
	err := r.conn.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM edges WHERE source_id = ? AND target_id = ?)",
		srcID, tgtID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists != 0 {
		return 0, &dromoserr.DiffAlreadyExists{Source: fmt.Sprintf("%d", srcID), Target: fmt.Sprintf("%d", tgtID)}
	}

	res, err := r.conn.Exec(
		"INSERT INTO edges (source_id, target_id, diff_path, diff_size) VALUES (?, ?, ?, ?)",
		srcID, tgtID, diffPath, diffSize,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const nodeColumns = `id, sha256, filename, title, rom_type, prg_rom_size, chr_rom_size,
	has_trainer, mapper, mirroring, has_battery, is_nes2, nes2_submapper,
	source_url, version, release_date, tags, description, source_file_header`

// GetNodeByHash returns the node with the given body hash, or nil if none
// exists.
func (r *Repository) GetNodeByHash(sha256 [32]byte) (*NodeRow, error) {
	row := r.conn.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE sha256 = ?", rom.FormatHash(sha256))
	return scanOptionalNode(row)
}

// GetNodeByID returns the node with the given surrogate id, or nil if none
// exists.
func (r *Repository) GetNodeByID(id int64) (*NodeRow, error) {
	row := r.conn.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	return scanOptionalNode(row)
}

// LoadAllNodes returns every node, ordered by ascending id.
func (r *Repository) LoadAllNodes() ([]NodeRow, error) {
	rows, err := r.conn.Query("SELECT " + nodeColumns + " FROM nodes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LoadAllEdges returns every edge, ordered by ascending id.
func (r *Repository) LoadAllEdges() ([]EdgeRow, error) {
	rows, err := r.conn.Query("SELECT id, source_id, target_id, diff_path, diff_size FROM edges ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.DiffPath, &e.DiffSize); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEdgesForNode returns every edge where id is the source or the target.
func (r *Repository) GetEdgesForNode(id int64) ([]EdgeRow, error) {
	rows, err := r.conn.Query(
		"SELECT id, source_id, target_id, diff_path, diff_size FROM edges WHERE source_id = ? OR target_id = ?",
		id, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.DiffPath, &e.DiffSize); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteNode deletes every edge incident to id, then the node itself.
func (r *Repository) DeleteNode(id int64) error {
	if _, err := r.conn.Exec("DELETE FROM edges WHERE source_id = ? OR target_id = ?", id, id); err != nil {
		return err
	}
	_, err := r.conn.Exec("DELETE FROM nodes WHERE id = ?", id)
	return err
}

// UpdateNodeMetadata replaces the six user-editable fields. The content
// hash and header fields are never touched here.
func (r *Repository) UpdateNodeMetadata(id int64, user UserMetadata) error {
	tags, err := encodeTags(user.Tags)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(
		`UPDATE nodes SET title = ?, source_url = ?, version = ?, release_date = ?, tags = ?, description = ?
		 WHERE id = ?`,
		user.Title, nullableString(user.SourceURL), nullableString(user.Version),
		nullableString(user.ReleaseDate), tags, nullableString(user.Description), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptionalNode(row rowScanner) (*NodeRow, error) {
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNode(row rowScanner) (NodeRow, error) {
	var (
		n                                                      NodeRow
		hashHex                                                string
		filename, sourceURL, version, releaseDate, description sql.NullString
		romType, mirroring                                     sql.NullString
		prg, chr, mapper, submapper                            sql.NullInt64
		hasTrainer, hasBattery, isNES2                         sql.NullBool
		tags                                                   sql.NullString
		headerBlob                                             []byte
	)

	err := row.Scan(
		&n.ID, &hashHex, &filename, &n.Title, &romType, &prg, &chr,
		&hasTrainer, &mapper, &mirroring, &hasBattery, &isNES2, &submapper,
		&sourceURL, &version, &releaseDate, &tags, &description, &headerBlob,
	)
	if err != nil {
		return NodeRow{}, err
	}

	parsedHash, ok := rom.ParseHash(hashHex)
	if !ok {
		return NodeRow{}, fmt.Errorf("db: stored hash %q is not valid hex-64", hashHex)
	}
	n.SHA256 = parsedHash
	n.Filename = filename.String
	n.RomType = rom.Type(romType.String)
	n.SourceURL = sourceURL.String
	n.Version = version.String
	n.ReleaseDate = releaseDate.String
	n.Description = description.String
	n.SourceFileHeader = headerBlob

	decoded, err := decodeTags(tags)
	if err != nil {
		return NodeRow{}, err
	}
	n.Tags = decoded

	if prg.Valid {
		n.Header = &rom.Header{
			PRGROMSize: int(prg.Int64),
			CHRROMSize: int(chr.Int64),
			HasTrainer: hasTrainer.Bool,
			Mapper:     int(mapper.Int64),
			Mirroring:  rom.ParseMirroring(mirroring.String),
			HasBattery: hasBattery.Bool,
			IsNES2:     isNES2.Bool,
			Submapper:  int(submapper.Int64),
		}
	}

	return n, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// encodeTags stores tags as a JSON array string, or NULL for an empty
// list; implementers are free to choose either as long as the round trip
// is consistent, and this store always prefers NULL for "no tags".
func encodeTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeTags(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s.String), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
