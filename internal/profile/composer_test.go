package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	u := User{ID: IntID(1), Bio: "loves hiking", Interests: "outdoors", Occupation: "guide"}
	assert.Equal(t, "Bio: loves hiking. Interests: outdoors. Occupation: guide.", Compose(u))
}

func TestComposeMissingFields(t *testing.T) {
	u := User{ID: IntID(1), Interests: "philately"}
	assert.Equal(t, "Bio: . Interests: philately. Occupation: .", Compose(u))
}

func TestComposeIsDeterministic(t *testing.T) {
	u := User{ID: StringID("a"), Bio: "b", Interests: "c, d", Occupation: "e"}
	assert.Equal(t, Compose(u), Compose(u))
}
