package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migration is one embedded SQL file
type Migration struct {
	Name string
	SQL  string
}

// Postgres returns the PostgreSQL migrations in lexical order
func Postgres() ([]Migration, error) {
	return load(PostgresFS, "postgres")
}

// Clickhouse returns the ClickHouse migrations in lexical order
func Clickhouse() ([]Migration, error) {
	return load(ClickhouseFS, "clickhouse")
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	out := make([]Migration, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: file, SQL: string(data)})
	}
	return out, nil
}

// SplitStatements splits SQL content into individual statements by semicolon.
// Comment lines are dropped. Semicolons inside string literals are rejected
// because the splitter does not understand quoting.
func SplitStatements(input string) ([]string, error) {
	if err := validateNoSemicolonInStrings(input); err != nil {
		return nil, err
	}

	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal")
		}
	}
	return nil
}
