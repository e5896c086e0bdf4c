// Package scripting loads simulation modules written in Lua. Each module
// lives in its own directory with a manifest.yaml declaring components,
// commands and systems, plus the script implementing them. Every module
// gets its own VM; all Lua execution happens on the tick goroutine.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/command"
	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
	"github.com/ireland-samantha/stormstack-sub008/internal/module"
)

type manifestCommand struct {
	Name    string            `yaml:"name"`
	Schema  map[string]string `yaml:"schema"`
	Handler string            `yaml:"handler"`
}

type manifestSystem struct {
	Name   string `yaml:"name"`
	Update string `yaml:"update"`
}

type manifest struct {
	Name       string            `yaml:"name"`
	Components []string          `yaml:"components"`
	Commands   []manifestCommand `yaml:"commands"`
	Systems    []manifestSystem  `yaml:"systems"`
	Script     string            `yaml:"script"`
}

// ScriptModule is one loaded Lua module with its dedicated VM.
type ScriptModule struct {
	vm  *lua.LState
	log *zap.Logger
	def module.Module
}

// Module returns the installable definition backed by this script.
func (m *ScriptModule) Module() module.Module {
	return m.def
}

// Close shuts down the module's VM.
func (m *ScriptModule) Close() {
	m.vm.Close()
}

// Loader reads script module directories.
type Loader struct {
	log *zap.Logger
}

func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

// LoadDir loads every subdirectory of dir containing a manifest.yaml.
// A missing dir yields no modules.
func (l *Loader) LoadDir(dir string) ([]*ScriptModule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	var out []*ScriptModule
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, "manifest.yaml")); os.IsNotExist(err) {
			continue
		}
		m, err := l.Load(path)
		if err != nil {
			for _, loaded := range out {
				loaded.Close()
			}
			return nil, fmt.Errorf("load module %s: %w", entry.Name(), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Load reads one module directory.
func (l *Loader) Load(dir string) (*ScriptModule, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if mf.Name == "" {
		return nil, fmt.Errorf("manifest missing name")
	}
	if mf.Script == "" {
		mf.Script = mf.Name + ".lua"
	}

	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	registerViewType(vm)

	if err := vm.DoFile(filepath.Join(dir, mf.Script)); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script %s: %w", mf.Script, err)
	}

	sm := &ScriptModule{vm: vm, log: l.log}
	def, err := sm.bind(mf)
	if err != nil {
		vm.Close()
		return nil, err
	}
	sm.def = def
	l.log.Debug("loaded lua module",
		zap.String("module", mf.Name),
		zap.String("script", mf.Script))
	return sm, nil
}

func (m *ScriptModule) bind(mf manifest) (module.Module, error) {
	def := module.Module{Name: mf.Name, Components: mf.Components}

	for _, mc := range mf.Commands {
		schema, err := parseSchema(mc.Schema)
		if err != nil {
			return module.Module{}, fmt.Errorf("command %s: %w", mc.Name, err)
		}
		fnName := mc.Handler
		if fnName == "" {
			fnName = "cmd_" + mc.Name
		}
		if m.vm.GetGlobal(fnName) == lua.LNil {
			return module.Module{}, fmt.Errorf("command %s: lua function %s not found", mc.Name, fnName)
		}
		def.Commands = append(def.Commands, module.Command{
			Name:   mc.Name,
			Schema: schema,
			Handler: func(view *ecs.ModuleView, p command.Payload) error {
				return m.callHandler(fnName, view, payloadToTable(m.vm, p))
			},
		})
	}

	for _, ms := range mf.Systems {
		fnName := ms.Update
		if fnName == "" {
			fnName = "system_" + ms.Name
		}
		if m.vm.GetGlobal(fnName) == lua.LNil {
			return module.Module{}, fmt.Errorf("system %s: lua function %s not found", ms.Name, fnName)
		}
		def.Systems = append(def.Systems, module.System{
			Name: ms.Name,
			Update: func(view *ecs.ModuleView, tick uint64) error {
				return m.callHandler(fnName, view, lua.LNumber(tick))
			},
		})
	}

	return def, nil
}

func (m *ScriptModule) callHandler(fnName string, view *ecs.ModuleView, arg lua.LValue) error {
	fn := m.vm.GetGlobal(fnName)
	if fn == lua.LNil {
		return fmt.Errorf("lua function %s not found", fnName)
	}
	if err := m.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, wrapView(m.vm, view), arg); err != nil {
		return fmt.Errorf("lua %s: %w", fnName, err)
	}
	return nil
}

func parseSchema(raw map[string]string) (command.Schema, error) {
	schema := make(command.Schema, len(raw))
	for field, kind := range raw {
		switch kind {
		case "number":
			schema[field] = command.KindNumber
		case "string":
			schema[field] = command.KindString
		case "bool":
			schema[field] = command.KindBool
		default:
			return nil, fmt.Errorf("field %s: unknown kind %q", field, kind)
		}
	}
	return schema, nil
}

func payloadToTable(vm *lua.LState, p command.Payload) *lua.LTable {
	t := vm.NewTable()
	for k, v := range p {
		switch val := v.(type) {
		case float64:
			t.RawSetString(k, lua.LNumber(val))
		case float32:
			t.RawSetString(k, lua.LNumber(val))
		case int:
			t.RawSetString(k, lua.LNumber(val))
		case int64:
			t.RawSetString(k, lua.LNumber(val))
		case uint64:
			t.RawSetString(k, lua.LNumber(val))
		case string:
			t.RawSetString(k, lua.LString(val))
		case bool:
			t.RawSetString(k, lua.LBool(val))
		}
	}
	return t
}
