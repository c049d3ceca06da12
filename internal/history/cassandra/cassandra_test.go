package cassandra

import (
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
)

func TestParseConsistency(t *testing.T) {
	assert.Equal(t, gocql.One, parseConsistency("one"))
	assert.Equal(t, gocql.LocalOne, parseConsistency("LOCAL_ONE"))
	assert.Equal(t, gocql.EachQuorum, parseConsistency("each_quorum"))
	assert.Equal(t, gocql.LocalQuorum, parseConsistency(""))
	assert.Equal(t, gocql.LocalQuorum, parseConsistency("bogus"))
}
