package database

import (
	"fmt"

	"fx-trade-journal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is one additive schema step. Applied reports whether the live
// schema already contains the change; Apply makes it.
type Migration struct {
	Name    string
	Applied func(db *gorm.DB) (bool, error)
	Apply   func(db *gorm.DB) error
}

// baseSchema is the shape of the trades table as first released. Columns
// added later are separate steps so existing files upgrade in place.
const baseSchema = `CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pair TEXT,
	trade_type TEXT,
	time TEXT,
	tp INTEGER,
	sl INTEGER,
	rr REAL,
	reason TEXT
)`

// Migrations is applied in order. Steps are append-only: never rename or
// remove a column a previous release wrote.
var Migrations = []Migration{
	{
		Name: "create_trades",
		Applied: func(db *gorm.DB) (bool, error) {
			return db.Migrator().HasTable(&models.Trade{}), nil
		},
		Apply: func(db *gorm.DB) error {
			return db.Exec(baseSchema).Error
		},
	},
	addColumn("add_entry_price", "entry_price", "EntryPrice"),
	addColumn("add_result", "result", "Result"),
	addColumn("add_pips", "pips", "Pips"),
}

func addColumn(name, column, field string) Migration {
	return Migration{
		Name: name,
		Applied: func(db *gorm.DB) (bool, error) {
			cols, err := Columns(db, models.Trade{}.TableName())
			if err != nil {
				return false, err
			}
			_, ok := cols[column]
			return ok, nil
		},
		Apply: func(db *gorm.DB) error {
			return db.Migrator().AddColumn(&models.Trade{}, field)
		},
	}
}

// Migrate runs every pending step and returns the names of the steps it
// applied. It is safe to call on every start.
func Migrate(db *gorm.DB, log *zap.Logger) ([]string, error) {
	var applied []string
	for _, m := range Migrations {
		done, err := m.Applied(db)
		if err != nil {
			return applied, fmt.Errorf("failed to inspect schema for %s: %w", m.Name, err)
		}
		if done {
			log.Debug("Migration already applied", zap.String("migration", m.Name))
			continue
		}
		if err := m.Apply(db); err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		log.Info("Applied migration", zap.String("migration", m.Name))
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// Columns returns the set of column names of table, as reported by SQLite.
func Columns(db *gorm.DB, table string) (map[string]struct{}, error) {
	rows, err := db.Raw("SELECT name FROM pragma_table_info(?)", table).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}
