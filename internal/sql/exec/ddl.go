package exec

import (
	"fmt"

	"coredb/internal/catalog"
	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
)

// Execute dispatches a parsed statement to its handler, per spec §4.9.
func (x *Executor) Execute(stmt ast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *ast.CreateTableStmt:
		return x.executeCreateTable(s)
	case *ast.DropTableStmt:
		return x.executeDropTable(s)
	case *ast.AlterTableStmt:
		return x.executeAlterTable(s)
	case *ast.CreateIndexStmt:
		return x.executeCreateIndex(s)
	case *ast.DropIndexStmt:
		return x.executeDropIndex(s)
	case *ast.InsertStmt:
		return x.ExecuteInsert(s)
	case *ast.SelectStmt:
		return x.ExecuteSelect(s)
	case *ast.UpdateStmt:
		return x.ExecuteUpdate(s)
	case *ast.DeleteStmt:
		return x.ExecuteDelete(s)
	case *ast.ExplainStmt:
		return x.ExecuteExplain(s)
	default:
		return nil, &dberr.SchemaError{Msg: "unsupported statement type"}
	}
}

func (x *Executor) executeCreateTable(stmt *ast.CreateTableStmt) (*Result, error) {
	cols := make([]catalog.ColumnDef, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = catalog.ColumnDef{Name: c.Name, Type: c.Type, Ordinal: i}
	}
	if err := x.cat.CreateTable(stmt.Table, cols); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %s created", stmt.Table)}, nil
}

func (x *Executor) executeDropTable(stmt *ast.DropTableStmt) (*Result, error) {
	if err := x.cat.DropTable(stmt.Table); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %s dropped", stmt.Table)}, nil
}

func (x *Executor) executeAlterTable(stmt *ast.AlterTableStmt) (*Result, error) {
	col := catalog.ColumnDef{Name: stmt.NewColumn.Name, Type: stmt.NewColumn.Type}
	if err := x.cat.AddColumn(stmt.Table, col); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("column %s added to %s", stmt.NewColumn.Name, stmt.Table)}, nil
}

func (x *Executor) executeCreateIndex(stmt *ast.CreateIndexStmt) (*Result, error) {
	if err := x.cat.CreateIndex(stmt.Index, stmt.Table, stmt.Column); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("index %s created on %s(%s)", stmt.Index, stmt.Table, stmt.Column)}, nil
}

func (x *Executor) executeDropIndex(stmt *ast.DropIndexStmt) (*Result, error) {
	if err := x.cat.DropIndex(stmt.Index); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("index %s dropped", stmt.Index)}, nil
}
