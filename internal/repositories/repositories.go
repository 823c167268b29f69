package repositories

import (
	"database/sql"
	"fmt"
)

// expectRow fails when an UPDATE or DELETE touched nothing.
func expectRow(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", what, id)
	}
	return nil
}
