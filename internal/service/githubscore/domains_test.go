package githubscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapTechnologiesToDomainsFullStackCombination(t *testing.T) {
	domains := MapTechnologiesToDomains([]string{"REACT", "NODE", "MONGODB"})

	assert.Equal(t, "REACT", domains[DomainFrontend])
	assert.Equal(t, "NODE,MONGODB", domains[DomainBackend])
	assert.Equal(t, "REACT,NODE,MONGODB", domains[DomainFullStack])
}

func TestMapTechnologiesToDomainsNoCombinationWithoutFrameworkOrDatabase(t *testing.T) {
	// HTML and GO carry neither a framework nor a database category, so
	// frontend plus backend alone does not earn a full-stack entry.
	domains := MapTechnologiesToDomains([]string{"HTML", "GO"})

	assert.Equal(t, "HTML", domains[DomainFrontend])
	assert.Equal(t, "GO", domains[DomainBackend])
	_, ok := domains[DomainFullStack]
	assert.False(t, ok)
}

func TestMapTechnologiesToDomainsUnknownGoesToOthers(t *testing.T) {
	domains := MapTechnologiesToDomains([]string{"COBOL", "BRAINFUCK"})
	assert.Equal(t, "COBOL,BRAINFUCK", domains[DomainOthers])
	assert.Len(t, domains, 1)
}

func TestMapTechnologiesToDomainsAmbiguousFrameworks(t *testing.T) {
	cases := []struct {
		tech string
		want string
	}{
		{"HIBERNATE", DomainBackend},
		{"HEROKU", DomainDevOps},
	}
	for _, tc := range cases {
		domains := MapTechnologiesToDomains([]string{tc.tech})
		assert.Equal(t, tc.tech, domains[tc.want], "tech %s", tc.tech)
	}
}

func TestMapTechnologiesToDomainsEmpty(t *testing.T) {
	assert.Empty(t, MapTechnologiesToDomains(nil))
}

func TestRankDomainsOthersLast(t *testing.T) {
	domains := map[string]string{
		DomainOthers:   "A,B,C,D",
		DomainBackend:  "GO,PYTHON",
		DomainFrontend: "REACT",
	}
	ranked := RankDomains(domains)
	assert.Equal(t, []string{DomainBackend, DomainFrontend, DomainOthers}, ranked)
}
