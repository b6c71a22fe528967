// Package migrations embeds the schema files so integration tests can apply
// them against throwaway databases.
package migrations

import "embed"

//go:embed mirror/*.sql authority/*.sql
var Files embed.FS

// Mirror returns the mirror-database schema files in order.
func Mirror() ([]string, error) { return read("mirror") }

// Authority returns the authority-database schema files in order.
func Authority() ([]string, error) { return read("authority") }

func read(dir string) ([]string, error) {
	entries, err := Files.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		b, err := Files.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}
