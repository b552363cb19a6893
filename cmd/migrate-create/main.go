package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const upTemplate = `-- New tables whose rows must reach connected game clients need a
-- pg_notify trigger; see the row_change_notify migration for the pattern.
`

const downTemplate = `-- Revert the matching up migration.
`

func main() {
	name := flag.String("name", "", "migration name (snake_case)")
	flag.Parse()

	if *name == "" {
		log.Fatal("migration name is required")
	}
	if !namePattern.MatchString(*name) {
		log.Fatalf("migration name must be snake_case: %q", *name)
	}

	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, *name)
	upPath := filepath.Join("db", "migrations", base+".up.sql")
	downPath := filepath.Join("db", "migrations", base+".down.sql")

	if err := os.MkdirAll(filepath.Dir(upPath), 0o755); err != nil {
		log.Fatalf("create migrations dir: %v", err)
	}

	if err := writeFile(upPath, upTemplate); err != nil {
		log.Fatalf("create up migration: %v", err)
	}
	if err := writeFile(downPath, downTemplate); err != nil {
		log.Fatalf("create down migration: %v", err)
	}

	log.Printf("created %s and %s", upPath, downPath)
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
