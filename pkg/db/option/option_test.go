package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithQuerySortBy(t *testing.T) {
	allowed := map[string]string{"sortOrder": "sort_order", "name": "name"}

	assert.Equal(t, Sort{{Column: "sort_order", Desc: true}}, WithQuerySortBy("sortOrder", "DESC", allowed))
	assert.Equal(t, Sort{{Column: "name"}}, WithQuerySortBy(" name ", "asc", allowed))
	assert.Nil(t, WithQuerySortBy("level", "asc", allowed))
}

func TestSortThenSkipsDuplicates(t *testing.T) {
	sort := Sort{{Column: "name"}}.Then("name", true).Then("id", false)
	assert.Equal(t, Sort{{Column: "name"}, {Column: "id"}}, sort)
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%phones%", ContainsPattern("phones"))
	assert.Equal(t, "%!_%", ContainsPattern("_"))
	assert.Equal(t, "%50!%!!%", ContainsPattern("50%!"))
}
