package vif

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v3"
)

// fixture is one captured input/output case from testdata/*.txtar.
type fixture struct {
	Name     string `yaml:"-"`
	Format   string `yaml:"format"`
	Unsigned bool   `yaml:"unsigned"`
	Masked   bool   `yaml:"masked"`
	Mask     uint32 `yaml:"mask"`
	Row      Vec    `yaml:"row"`
	Col      Vec    `yaml:"col"`
	Src      string `yaml:"src"`
	Dst      []Vec  `yaml:"dst"`
	Want     []Vec  `yaml:"want"`
}

func loadFixtures(t *testing.T) []fixture {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures found")
	}
	var out []fixture
	for _, path := range paths {
		ar, err := txtar.ParseFile(path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		for _, f := range ar.Files {
			var fx fixture
			if err := yaml.Unmarshal(f.Data, &fx); err != nil {
				t.Fatalf("%s/%s: %v", path, f.Name, err)
			}
			fx.Name = strings.TrimSuffix(filepath.Base(path), ".txtar") + "/" + strings.TrimSuffix(f.Name, ".yaml")
			out = append(out, fx)
		}
	}
	return out
}

func (fx fixture) format(t *testing.T) Format {
	t.Helper()
	f, err := ParseFormat(fx.Format)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (fx fixture) source(t *testing.T) []byte {
	t.Helper()
	src, err := hex.DecodeString(strings.Join(strings.Fields(fx.Src), ""))
	if err != nil {
		t.Fatalf("bad src: %v", err)
	}
	return src
}

func (fx fixture) masks() [NumPhases]MaskTriple {
	return MasksFromRegister(fx.Mask, fx.Row, fx.Col)
}

func (fx fixture) dst() []Vec {
	dst := make([]Vec, len(fx.Want))
	copy(dst, fx.Dst)
	return dst
}

func TestModelFixtures(t *testing.T) {
	for _, fx := range loadFixtures(t) {
		t.Run(fx.Name, func(t *testing.T) {
			m := NewModel()
			if fx.Masked {
				m.Masks = fx.masks()
			}
			dst := fx.dst()
			if err := m.Unpack(fx.format(t), fx.Unsigned, fx.Masked, dst, fx.source(t)); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(fx.Want, dst); diff != "" {
				t.Errorf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}
