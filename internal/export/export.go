// Package export writes consolidation plans to a SQLite database so that
// table generators in other tools can read the chosen layout.
package export

import (
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/consolidate"
)

const schema = `
CREATE TABLE IF NOT EXISTS plan_groups (
	family      TEXT    NOT NULL,
	group_index INTEGER NOT NULL,
	cells       TEXT    NOT NULL,
	size        INTEGER NOT NULL,
	start       INTEGER NOT NULL,
	PRIMARY KEY (family, group_index)
);
CREATE TABLE IF NOT EXISTS plan_members (
	family      TEXT    NOT NULL,
	square      TEXT    NOT NULL,
	group_index INTEGER NOT NULL,
	multiplier  TEXT    NOT NULL,
	min_hash    INTEGER NOT NULL,
	width       INTEGER NOT NULL,
	PRIMARY KEY (family, square)
);`

// Member is one square's row.
type Member struct {
	Square     board.Square
	Group      int
	Multiplier uint64
	MinHash    uint32
	Width      uint32
}

// DB is an open export database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// WritePlan replaces the rows of the plan's family.
func (d *DB) WritePlan(plan *consolidate.Plan) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fam := plan.Family.String()
	for _, table := range []string{"plan_groups", "plan_members"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE family = ?", fam); err != nil {
			return err
		}
	}

	groupStmt, err := tx.Prepare("INSERT INTO plan_groups (family, group_index, cells, size, start) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer groupStmt.Close()

	memberStmt, err := tx.Prepare("INSERT INTO plan_members (family, square, group_index, multiplier, min_hash, width) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer memberStmt.Close()

	for i, c := range plan.Choices {
		names := make([]string, len(c.Cells))
		for k, sq := range c.Cells {
			names[k] = sq.String()
		}
		if _, err := groupStmt.Exec(fam, i, strings.Join(names, "+"), c.Size, c.Start); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}

		for k, sq := range c.Cells {
			pick := c.Picks[k]
			// SQLite integers are signed; multipliers go in as hex.
			if _, err := memberStmt.Exec(fam, sq.String(), i, hex(pick.Multiplier), pick.MinHash, pick.Width); err != nil {
				return fmt.Errorf("member %s: %w", sq, err)
			}
		}
	}

	return tx.Commit()
}

// Members reads back the rows of a family in square order.
func (d *DB) Members(fam board.Family) ([]Member, error) {
	rows, err := d.db.Query("SELECT square, group_index, multiplier, min_hash, width FROM plan_members WHERE family = ?", fam.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var (
			m          Member
			name, mult string
		)
		if err := rows.Scan(&name, &m.Group, &mult, &m.MinHash, &m.Width); err != nil {
			return nil, err
		}
		if m.Square, err = board.ParseSquare(name); err != nil {
			return nil, err
		}
		if m.Multiplier, err = strconv.ParseUint(strings.TrimPrefix(mult, "0x"), 16, 64); err != nil {
			return nil, fmt.Errorf("multiplier of %s: %w", name, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b Member) int {
		return int(a.Square) - int(b.Square)
	})
	return out, nil
}

// TotalSlots sums the group sizes stored for a family.
func (d *DB) TotalSlots(fam board.Family) (uint64, error) {
	var total sql.NullInt64
	err := d.db.QueryRow("SELECT SUM(size) FROM plan_groups WHERE family = ?", fam.String()).Scan(&total)
	if err != nil {
		return 0, err
	}
	return uint64(total.Int64), nil
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%016x", v)
}
