package schema

import (
	"github.com/jinzhu/inflection"
	gormschema "gorm.io/gorm/schema"
)

var namer = gormschema.NamingStrategy{}

// snake converts a Go style name to snake_case: "BestAnswer" -> "best_answer".
func snake(name string) string {
	return namer.ColumnName("", name)
}

// tableName is the conventional table for a model name: "Forum" -> "forums".
func tableName(model string) string {
	return namer.TableName(model)
}

func singular(word string) string {
	return inflection.Singular(word)
}
