// Command coredbdump opens a group file read-only and prints its table
// names, row counts, and column schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coredb/coredb"
)

func main() {
	path := flag.String("path", "", "path to the group file to inspect")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "coredbdump: -path is required")
		os.Exit(2)
	}

	g, err := coredb.OpenGroup(coredb.GroupOpts{Path: *path, Mode: coredb.ModeReadOnly})
	if err != nil {
		fmt.Fprintf(os.Stderr, "coredbdump: open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer g.Close()

	names, err := g.TableNames()
	if err != nil {
		fmt.Fprintf(os.Stderr, "coredbdump: list tables: %v\n", err)
		os.Exit(1)
	}

	for _, name := range names {
		table, err := g.GetTable(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "coredbdump: open table %s: %v\n", name, err)
			os.Exit(1)
		}
		rows, err := table.RowCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "coredbdump: row count for %s: %v\n", name, err)
			os.Exit(1)
		}

		schema := table.Schema()
		n, err := schema.ColumnCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "coredbdump: schema for %s: %v\n", name, err)
			os.Exit(1)
		}

		fmt.Printf("%s (%d rows)\n", name, rows)
		for col := 0; col < n; col++ {
			colName, err := schema.ColumnName(col)
			if err != nil {
				fmt.Fprintf(os.Stderr, "coredbdump: column name: %v\n", err)
				os.Exit(1)
			}
			colType, err := schema.ColumnType(col)
			if err != nil {
				fmt.Fprintf(os.Stderr, "coredbdump: column type: %v\n", err)
				os.Exit(1)
			}
			indexed, err := schema.IsIndexed(col)
			if err != nil {
				fmt.Fprintf(os.Stderr, "coredbdump: column indexed flag: %v\n", err)
				os.Exit(1)
			}
			mark := ""
			if indexed {
				mark = " [indexed]"
			}
			fmt.Printf("  %-20s %s%s\n", colName, columnTypeName(colType.ReportedType()), mark)
		}
	}
}

func columnTypeName(t coredb.ColumnType) string {
	switch t {
	case coredb.TypeInt:
		return "int"
	case coredb.TypeBool:
		return "bool"
	case coredb.TypeDate:
		return "date"
	case coredb.TypeString:
		return "string"
	case coredb.TypeBinary:
		return "binary"
	case coredb.TypeSubtable:
		return "subtable"
	case coredb.TypeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}
