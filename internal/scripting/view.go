package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ireland-samantha/stormstack-sub008/internal/core/ecs"
)

const viewTypeName = "view"

// registerViewType installs the view userdata metatable. Scripts receive
// a view as the first argument of every handler and reach the store
// through its methods; ownership violations raise Lua errors that the
// protected call turns into command failures.
func registerViewType(vm *lua.LState) {
	mt := vm.NewTypeMetatable(viewTypeName)
	vm.SetField(mt, "__index", vm.SetFuncs(vm.NewTable(), viewMethods))
}

func wrapView(vm *lua.LState, view *ecs.ModuleView) *lua.LUserData {
	ud := vm.NewUserData()
	ud.Value = view
	vm.SetMetatable(ud, vm.GetTypeMetatable(viewTypeName))
	return ud
}

func checkView(L *lua.LState) *ecs.ModuleView {
	ud := L.CheckUserData(1)
	if v, ok := ud.Value.(*ecs.ModuleView); ok {
		return v
	}
	L.ArgError(1, "view expected")
	return nil
}

var viewMethods = map[string]lua.LGFunction{
	"create_entity": viewCreateEntity,
	"attach":        viewAttach,
	"get":           viewGet,
	"has":           viewHas,
	"remove":        viewRemove,
	"delete":        viewDelete,
	"entities_with": viewEntitiesWith,
}

// view:create_entity(match_id) -> entity_id
func viewCreateEntity(L *lua.LState) int {
	v := checkView(L)
	matchID := uint64(L.CheckNumber(2))
	id := v.CreateEntity(matchID)
	L.Push(lua.LNumber(id))
	return 1
}

// view:attach(entity_id, component_name, value)
func viewAttach(L *lua.LState) int {
	v := checkView(L)
	id := ecs.EntityID(L.CheckNumber(2))
	comp := v.Component(L.CheckString(3))
	val := float32(L.CheckNumber(4))
	if err := v.Attach(id, comp, val); err != nil {
		L.RaiseError("attach: %v", err)
	}
	return 0
}

// view:get(entity_id, component_name) -> value or nil when unset
func viewGet(L *lua.LState) int {
	v := checkView(L)
	id := ecs.EntityID(L.CheckNumber(2))
	comp := v.Component(L.CheckString(3))
	val := v.Get(id, comp)
	if ecs.IsNull(val) {
		L.Push(lua.LNil)
	} else {
		L.Push(lua.LNumber(val))
	}
	return 1
}

// view:has(entity_id, component_name) -> bool
func viewHas(L *lua.LState) int {
	v := checkView(L)
	id := ecs.EntityID(L.CheckNumber(2))
	comp := v.Component(L.CheckString(3))
	L.Push(lua.LBool(v.Has(id, comp)))
	return 1
}

// view:remove(entity_id, component_name)
func viewRemove(L *lua.LState) int {
	v := checkView(L)
	id := ecs.EntityID(L.CheckNumber(2))
	comp := v.Component(L.CheckString(3))
	if err := v.Remove(id, comp); err != nil {
		L.RaiseError("remove: %v", err)
	}
	return 0
}

// view:delete(entity_id)
func viewDelete(L *lua.LState) int {
	v := checkView(L)
	id := ecs.EntityID(L.CheckNumber(2))
	if err := v.Delete(id); err != nil {
		L.RaiseError("delete: %v", err)
	}
	return 0
}

// view:entities_with(component_name, ...) -> array of entity ids
func viewEntitiesWith(L *lua.LState) int {
	v := checkView(L)
	n := L.GetTop()
	comps := make([]ecs.Component, 0, n-1)
	for i := 2; i <= n; i++ {
		comps = append(comps, v.Component(L.CheckString(i)))
	}
	t := L.NewTable()
	for i, id := range v.EntitiesWith(comps...) {
		t.RawSetInt(i+1, lua.LNumber(id))
	}
	L.Push(t)
	return 1
}
