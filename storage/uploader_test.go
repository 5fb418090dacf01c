package storage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	uuidPart := `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`
	tests := []struct {
		name    string
		prefix  string
		kind    string
		ext     string
		pattern string
	}{
		{name: "dotted ext", prefix: "bookings/12", kind: "payment", ext: ".png", pattern: `^bookings/12/payment-` + uuidPart + `\.png$`},
		{name: "bare ext", prefix: "/blog/", kind: "cover", ext: "jpg", pattern: `^blog/cover-` + uuidPart + `\.jpg$`},
		{name: "no ext", prefix: "results", kind: "image", ext: "", pattern: `^results/image-` + uuidPart + `$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, regexp.MustCompile(tt.pattern), ObjectKey(tt.prefix, tt.kind, tt.ext))
		})
	}

	assert.NotEqual(t, ObjectKey("a", "b", ".png"), ObjectKey("a", "b", ".png"))
}
