package querysql

import (
	"fmt"
)

// Column is one column assignment of an insert or update.
type Column struct {
	Name  string
	Value any
}

// SelectByID reads one row by ID, ID column first.
func (c *Compiler) SelectByID(id string, fields []string) Statement {
	b := &builder{dialect: c.Dialect}
	b.write("SELECT " + QuoteIdent(c.IDColumn) + ", ")
	if len(fields) == 0 {
		b.write("*")
	} else {
		for i, f := range fields {
			if i > 0 {
				b.write(", ")
			}
			b.write(QuoteIdent(f))
		}
	}
	b.write(" FROM " + QuoteIdent(c.Table) + " WHERE " + QuoteIdent(c.IDColumn) + " = ")
	b.bind(id)
	return b.statement()
}

// Insert builds an INSERT returning the new row's ID.
func (c *Compiler) Insert(cols []Column) Statement {
	b := &builder{dialect: c.Dialect}
	b.write("INSERT INTO " + QuoteIdent(c.Table))
	if len(cols) == 0 {
		b.write(" DEFAULT VALUES")
	} else {
		b.write(" (")
		for i, col := range cols {
			if i > 0 {
				b.write(", ")
			}
			b.write(QuoteIdent(col.Name))
		}
		b.write(") VALUES (")
		for i, col := range cols {
			if i > 0 {
				b.write(", ")
			}
			b.bind(col.Value)
		}
		b.write(")")
	}
	b.write(" RETURNING " + QuoteIdent(c.IDColumn))
	return b.statement()
}

// Update builds an UPDATE of one row by ID.
func (c *Compiler) Update(id string, cols []Column) (Statement, error) {
	if len(cols) == 0 {
		return Statement{}, fmt.Errorf("update %s: no columns", c.Table)
	}
	b := &builder{dialect: c.Dialect}
	b.write("UPDATE " + QuoteIdent(c.Table) + " SET ")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(QuoteIdent(col.Name) + " = ")
		b.bind(col.Value)
	}
	b.write(" WHERE " + QuoteIdent(c.IDColumn) + " = ")
	b.bind(id)
	return b.statement(), nil
}

// Delete builds a DELETE of one row by ID.
func (c *Compiler) Delete(id string) Statement {
	b := &builder{dialect: c.Dialect}
	b.write("DELETE FROM " + QuoteIdent(c.Table) + " WHERE " + QuoteIdent(c.IDColumn) + " = ")
	b.bind(id)
	return b.statement()
}
