package main

import (
	"fmt"
	"strings"

	"github.com/pivolan/stats_tables/domain/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ClickHouse is reached over its mysql wire port, so the stock mysql
// driver works for both reading training tables and writing feature
// tables.
func openClickhouse(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return db, nil
}

type columnInfo struct {
	Name string
	Type string // Date DateTime64 Int64 Float64 String
}

func getColumnAndTypeList(db *gorm.DB, tableName string) ([]columnInfo, error) {
	tx := db.Raw(fmt.Sprintf("DESCRIBE TABLE %s", tableName))
	if tx.Error != nil {
		return nil, tx.Error
	}
	var columns []columnInfo
	tx.Scan(&columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", tableName)
	}
	return columns, nil
}

// sqlRowSource reads one whole table as training rows. NULL cells are
// absent from the produced row, matching the predicate NULL semantics.
type sqlRowSource struct {
	db       *gorm.DB
	table    string
	idColumn string
}

func (s *sqlRowSource) Rows() ([]models.Row, error) {
	columns, err := getColumnAndTypeList(s.db, s.table)
	if err != nil {
		return nil, fmt.Errorf("describe training table %s: %w", s.table, err)
	}

	records := []map[string]interface{}{}
	tx := s.db.Raw(generateSelectAll(columns, s.table))
	if tx.Error != nil {
		return nil, fmt.Errorf("read training table %s: %w", s.table, tx.Error)
	}
	tx.Scan(&records)

	rows := make([]models.Row, 0, len(records))
	for n, record := range records {
		row := models.Row{ID: fmt.Sprintf("row_%06d", n+1)}
		// Preserve DESCRIBE column order, not map order.
		for _, column := range columns {
			value, ok := record[column.Name]
			if !ok || value == nil {
				continue
			}
			text := fmt.Sprint(value)
			if column.Name == s.idColumn && s.idColumn != "" {
				row.ID = text
				continue
			}
			row.Cells = append(row.Cells, models.Cell{Column: column.Name, Value: text})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func generateSelectAll(columns []columnInfo, table string) string {
	fields := make([]string, 0, len(columns))
	for _, column := range columns {
		fields = append(fields, column.Name)
	}
	return "SELECT " + strings.Join(fields, ",") + " FROM " + table
}

// sqlFeatureSink buffers feature rows and flushes them into a fresh
// ClickHouse table on Close (the column union is only known at the end).
type sqlFeatureSink struct {
	db    *gorm.DB
	table string
	rows  []models.FeatureRow
}

const sqlInsertBatch = 1000

func (s *sqlFeatureSink) Write(row models.FeatureRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *sqlFeatureSink) Close() error {
	columns := featureColumns(s.rows)
	if tx := s.db.Exec(generateFeatureTableDDL(s.table, columns)); tx.Error != nil {
		return fmt.Errorf("create feature table %s: %w", s.table, tx.Error)
	}
	for start := 0; start < len(s.rows); start += sqlInsertBatch {
		end := start + sqlInsertBatch
		if end > len(s.rows) {
			end = len(s.rows)
		}
		if tx := s.db.Exec(generateFeatureInsert(s.table, columns, s.rows[start:end])); tx.Error != nil {
			return fmt.Errorf("insert feature rows into %s: %w", s.table, tx.Error)
		}
	}
	return nil
}

func generateFeatureTableDDL(table string, columns []string) string {
	fields := []string{"row String"}
	for _, column := range columns {
		fields = append(fields, column+" Nullable(Int64)")
	}
	return "CREATE TABLE " + table + " (" + strings.Join(fields, ", ") + ") ENGINE = MergeTree() ORDER BY row"
}

func generateFeatureInsert(table string, columns []string, rows []models.FeatureRow) string {
	b := strings.Builder{}
	b.WriteString("INSERT INTO " + table + " (row," + strings.Join(columns, ",") + ") VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("('" + strings.ReplaceAll(row.ID, "'", "''") + "'")
		for _, column := range columns {
			if value, ok := row.Get(column); ok {
				b.WriteString(fmt.Sprintf(",%d", value))
			} else {
				b.WriteString(",NULL")
			}
		}
		b.WriteString(")")
	}
	return b.String()
}
