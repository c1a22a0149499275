package rings

import (
	"testing"

	"github.com/jacktea/xavatar/pkg/generator/generatortest"
)

func TestMain(m *testing.M) {
	generatortest.Main(m, New())
}
