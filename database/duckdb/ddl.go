package duckdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jing2uo/quantlab/views"
)

const (
	viewsSQLFile = "views.sql"
	viewsUMLFile = "views.puml"
)

// ExportViews 将视图 DDL 与依赖图写入 dir, 返回写入的文件
func (d *DuckDBDriver) ExportViews(g views.Globber, dir string) ([]string, error) {
	ddl, err := d.graph.ExportSQL(g)
	if err != nil {
		return nil, err
	}
	uml, err := d.graph.RelationshipGraph()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create export directory %s: %w", dir, err)
	}

	files := map[string]string{
		viewsSQLFile: ddl,
		viewsUMLFile: uml,
	}
	var written []string
	for _, name := range []string{viewsSQLFile, viewsUMLFile} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
