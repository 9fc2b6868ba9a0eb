package fint

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var (
	//go:embed schema.graphql
	schemaSource string

	//go:embed personalressurs.graphql
	personnelResourceQuery string
)

const usernameVariable = "brukernavn"

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// validatedQuery checks the embedded query against the embedded schema once.
var validatedQuery = sync.OnceValues(func() (string, error) {
	return validateQuery(schemaSource, personnelResourceQuery)
})

func validateQuery(schemaSDL, query string) (string, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
	if err != nil {
		return "", errors.Wrap(err, "load graphql schema")
	}
	doc, errs := gqlparser.LoadQuery(schema, query)
	if len(errs) > 0 {
		return "", errors.Wrap(errs, "validate graphql query")
	}
	if len(doc.Operations) != 1 {
		return "", errors.Errorf("graphql query must declare one operation, got %d", len(doc.Operations))
	}
	if doc.Operations[0].VariableDefinitions.ForName(usernameVariable) == nil {
		return "", errors.Errorf("graphql query must declare $%s", usernameVariable)
	}
	return strings.TrimSpace(query), nil
}
