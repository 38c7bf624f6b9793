package database

import "testing"

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tables := []string{"families", "members", "chores", "rewards", "reward_redemptions", "sessions", "weekly_state", "push_subscriptions"}
	for _, name := range tables {
		var got string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
		if err != nil {
			t.Errorf("table %q missing: %v", name, err)
		}
	}

	version, err := db.Version()
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var on int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", SQLite},
		{"sqlite3", SQLite},
		{"Postgres", Postgres},
		{"postgresql", Postgres},
		{"mysql", MySQL},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if err != nil {
			t.Errorf("ParseDialect(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE members SET total_points = total_points - ? WHERE id = ? AND total_points >= ?"

	if got := SQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	if got := MySQL.Rebind(q); got != q {
		t.Errorf("mysql rebind changed query: %q", got)
	}

	want := "UPDATE members SET total_points = total_points - $1 WHERE id = $2 AND total_points >= $3"
	if got := Postgres.Rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestForUpdate(t *testing.T) {
	if SQLite.ForUpdate() != "" {
		t.Error("sqlite should not lock rows")
	}
	if Postgres.ForUpdate() != " FOR UPDATE" {
		t.Errorf("postgres ForUpdate = %q", Postgres.ForUpdate())
	}
}
