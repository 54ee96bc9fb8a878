package router

import (
	"context"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIFile = "../../../public/docs/v1/openapi.yml"

func TestOpenAPIDocument_IsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIFile)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
}

// Every documented operation must be served by the router.
func TestOpenAPIDocument_MatchesRoutes(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromFile(openAPIFile)
	require.NoError(t, err)

	app := newTestApp(t, 0)
	served := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		served[r.Method+" "+r.Path] = true
	}

	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			key := strings.ToUpper(method) + " " + path
			assert.True(t, served[key], "documented but not routed: %s", key)
		}
	}
}
