package main

import (
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/milk9111/physics2d/config"
)

// lifecycleDispatch routes one run of the compiled script to the hook the
// host asked for. Scripts define on_init and on_step as globals.
const lifecycleDispatch = `
if __phase == "init" {
	on_init(__physics, __objects)
} else if __phase == "step" {
	on_step(__physics, __objects, __dt, __frame)
}
`

// scriptRuntime drives one sandbox script: compiled once up front, run per
// phase with the module and frame state injected as globals.
type scriptRuntime struct {
	path     string
	compiled *tengo.Compiled
	physics  *tengo.ImmutableMap
	objects  *tengo.ImmutableMap
}

func newScriptRuntime(path string, mod, objects map[string]tengo.Object) (*scriptRuntime, error) {
	compiled, err := compileScript(path)
	if err != nil {
		return nil, err
	}
	return &scriptRuntime{
		path:     path,
		compiled: compiled,
		physics:  &tengo.ImmutableMap{Value: mod},
		objects:  &tengo.ImmutableMap{Value: objects},
	}, nil
}

func compileScript(path string) (*tengo.Compiled, error) {
	src, err := config.LoadScript(path)
	if err != nil {
		return nil, err
	}

	script := tengo.NewScript([]byte(string(src) + "\n" + lifecycleDispatch))
	_ = script.Add("__phase", "")
	_ = script.Add("__physics", map[string]any{})
	_ = script.Add("__objects", map[string]any{})
	_ = script.Add("__dt", 0.0)
	_ = script.Add("__frame", 0)
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	return script.Compile()
}

// reload recompiles the script from its source file. Frame state carries
// over; on_init does not run again.
func (rt *scriptRuntime) reload() error {
	compiled, err := compileScript(rt.path)
	if err != nil {
		return err
	}
	rt.compiled = compiled
	return nil
}

func (rt *scriptRuntime) init() error {
	return rt.runPhase("init", 0, 0)
}

func (rt *scriptRuntime) step(dt float64, frame int) error {
	return rt.runPhase("step", dt, frame)
}

func (rt *scriptRuntime) runPhase(phase string, dt float64, frame int) error {
	if err := rt.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := rt.compiled.Set("__physics", rt.physics); err != nil {
		return err
	}
	if err := rt.compiled.Set("__objects", rt.objects); err != nil {
		return err
	}
	if err := rt.compiled.Set("__dt", dt); err != nil {
		return err
	}
	if err := rt.compiled.Set("__frame", frame); err != nil {
		return err
	}
	return rt.compiled.Run()
}
