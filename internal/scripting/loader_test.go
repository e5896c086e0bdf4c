package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

const testManifest = `name: movement
components: [POS_X, POS_Y]
commands:
  - name: move
    schema:
      matchId: number
      entityId: number
      dx: number
      dy: number
systems:
  - name: drift
`

const testScript = `
function cmd_move(view, p)
    local x = view:get(p.entityId, "POS_X") or 0
    local y = view:get(p.entityId, "POS_Y") or 0
    view:attach(p.entityId, "POS_X", x + p.dx)
    view:attach(p.entityId, "POS_Y", y + p.dy)
end

function system_drift(view, tick)
    for _, id in ipairs(view:entities_with("POS_X")) do
        view:attach(id, "POS_X", view:get(id, "POS_X") + 1)
    end
end
`

func writeModule(t *testing.T, dir, name, manifest, script string) string {
	t.Helper()
	modDir := filepath.Join(dir, name)
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modDir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modDir, name+".lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	return modDir
}

func newScriptView() (*ecs.Store, *ecs.Registry, *ecs.ModuleView) {
	s := ecs.NewStore(ecs.NewSequence())
	r := ecs.NewRegistry()
	return s, r, ecs.NewModuleView(s, r, r.RegisterFlag("movement"))
}

func TestLoadDirDiscoversModules(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "movement", testManifest, testScript)

	loader := NewLoader(zap.NewNop())
	mods, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		for _, m := range mods {
			m.Close()
		}
	}()
	if len(mods) != 1 {
		t.Fatalf("loaded %d modules, want 1", len(mods))
	}
	def := mods[0].Module()
	if def.Name != "movement" {
		t.Fatalf("name = %s", def.Name)
	}
	if len(def.Components) != 2 || len(def.Commands) != 1 || len(def.Systems) != 1 {
		t.Fatalf("definition = %+v", def)
	}
}

func TestLoadDirMissingIsEmpty(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	mods, err := loader.LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(mods) != 0 {
		t.Fatalf("mods = %v, err = %v", mods, err)
	}
}

func TestScriptedCommandMutatesStore(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "movement", testManifest, testScript)

	loader := NewLoader(zap.NewNop())
	mods, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer mods[0].Close()

	_, reg, view := newScriptView()
	id := view.CreateEntity(1)
	posX := reg.Register("POS_X")

	cmd := mods[0].Module().Commands[0]
	p := command.Payload{"matchId": 1, "entityId": float64(id), "dx": 3.0, "dy": 4.0}
	if err := cmd.Schema.Validate(cmd.Name, p); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Handler(view, p); err != nil {
		t.Fatal(err)
	}
	if got := view.Get(id, posX); got != 3 {
		t.Fatalf("POS_X = %v, want 3", got)
	}
	// Second move accumulates.
	if err := cmd.Handler(view, p); err != nil {
		t.Fatal(err)
	}
	if got := view.Get(id, posX); got != 6 {
		t.Fatalf("POS_X = %v, want 6", got)
	}
}

func TestScriptedSystemRuns(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "movement", testManifest, testScript)

	loader := NewLoader(zap.NewNop())
	mods, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer mods[0].Close()

	_, reg, view := newScriptView()
	id := view.CreateEntity(1)
	posX := reg.Register("POS_X")
	if err := view.Attach(id, posX, 10); err != nil {
		t.Fatal(err)
	}

	sys := mods[0].Module().Systems[0]
	if err := sys.Update(view, 1); err != nil {
		t.Fatal(err)
	}
	if got := view.Get(id, posX); got != 11 {
		t.Fatalf("POS_X = %v, want 11", got)
	}
}

func TestScriptErrorBecomesCommandError(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "boom", `name: boom
commands:
  - name: explode
    schema: {}
`, `
function cmd_explode(view, p)
    error("no survivors")
end
`)

	loader := NewLoader(zap.NewNop())
	mods, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer mods[0].Close()

	s := ecs.NewStore(ecs.NewSequence())
	r := ecs.NewRegistry()
	view := ecs.NewModuleView(s, r, r.RegisterFlag("boom"))

	if err := mods[0].Module().Commands[0].Handler(view, command.Payload{}); err == nil {
		t.Fatal("lua error should surface as command failure")
	}
}

func TestMissingHandlerRejectedAtLoad(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "half", `name: half
commands:
  - name: ghost
    schema: {}
`, `-- no functions here`)

	loader := NewLoader(zap.NewNop())
	if _, err := loader.LoadDir(dir); err == nil {
		t.Fatal("manifest referencing a missing lua function should fail to load")
	}
}

func TestBadSchemaKindRejected(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "bad", `name: bad
commands:
  - name: x
    schema: {v: floatish}
`, `function cmd_x(view, p) end`)

	loader := NewLoader(zap.NewNop())
	if _, err := loader.LoadDir(dir); err == nil {
		t.Fatal("unknown schema kind should fail to load")
	}
}
