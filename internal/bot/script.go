package bot

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/rules"
)

//go:embed default.lua
var defaultScript string

const chooseTimeout = 250 * time.Millisecond

// ErrNoChoose is returned when a script does not define choose(board).
var ErrNoChoose = errors.New("script does not define choose(board)")

// LoadScript returns the source at path, or the built-in strategy when path
// is empty.
func LoadScript(path string) (string, error) {
	if path == "" {
		return defaultScript, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read bot script: %w", err)
	}
	return string(b), nil
}

// Strategy is one compiled Lua script. An LState is single-threaded, so
// every bot owns its own Strategy.
type Strategy struct {
	L      *lua.LState
	choose lua.LValue
}

// NewStrategy runs src in a fresh sandbox and looks up its choose function.
func NewStrategy(src string) (*Strategy, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("set", L.SetFuncs(L.NewTable(), setModule))

	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load bot script: %w", err)
	}
	fn := L.GetGlobal("choose")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, ErrNoChoose
	}
	return &Strategy{L: L, choose: fn}, nil
}

// Choose asks the script for a triple. A nil slice means the script passed.
func (s *Strategy) Choose(ctx context.Context, board []int) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, chooseTimeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := s.L.CallByParam(lua.P{Fn: s.choose, NRet: 1, Protect: true}, intsToTable(s.L, board)); err != nil {
		return nil, fmt.Errorf("choose: %w", err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, nil
	case *lua.LTable:
		cards, err := tableToInts(v)
		if err != nil {
			return nil, fmt.Errorf("choose: %w", err)
		}
		if len(cards) != 3 {
			return nil, fmt.Errorf("choose: returned %d cards, want 3", len(cards))
		}
		return cards, nil
	default:
		return nil, fmt.Errorf("choose: returned %s, want table or nil", ret.Type())
	}
}

// Close releases the interpreter.
func (s *Strategy) Close() {
	s.L.Close()
}

// ---------- set module ----------

var setModule = map[string]lua.LGFunction{
	"is_set":     luaIsSet,
	"third":      luaThird,
	"exists":     luaExists,
	"find":       luaFind,
	"attributes": luaAttributes,
}

func checkCard(L *lua.LState, n int) int {
	id := L.CheckInt(n)
	if !rules.ValidCard(id) {
		L.ArgError(n, fmt.Sprintf("card %d out of range", id))
	}
	return id
}

func checkBoard(L *lua.LState, n int) []int {
	cards, err := tableToInts(L.CheckTable(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return cards
}

func luaIsSet(L *lua.LState) int {
	L.Push(lua.LBool(rules.IsSet(checkCard(L, 1), checkCard(L, 2), checkCard(L, 3))))
	return 1
}

func luaThird(L *lua.LState) int {
	L.Push(lua.LNumber(rules.ThirdCard(checkCard(L, 1), checkCard(L, 2))))
	return 1
}

func luaExists(L *lua.LState) int {
	L.Push(lua.LBool(rules.SetExists(checkBoard(L, 1))))
	return 1
}

func luaFind(L *lua.LState) int {
	triple, ok := rules.FindSet(checkBoard(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(intsToTable(L, triple[:]))
	return 1
}

func luaAttributes(L *lua.LState) int {
	a := rules.CardAttributes(checkCard(L, 1))
	t := L.NewTable()
	t.RawSetString("number", lua.LNumber(a.Number))
	t.RawSetString("shape", lua.LNumber(a.Shape))
	t.RawSetString("shading", lua.LNumber(a.Shading))
	t.RawSetString("color", lua.LNumber(a.Color))
	L.Push(t)
	return 1
}

// ---------- conversions ----------

func intsToTable(L *lua.LState, xs []int) *lua.LTable {
	t := L.CreateTable(len(xs), 0)
	for _, x := range xs {
		t.Append(lua.LNumber(x))
	}
	return t
}

func tableToInts(t *lua.LTable) ([]int, error) {
	n := t.Len()
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		num, ok := t.RawGetInt(i).(lua.LNumber)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out = append(out, int(num))
	}
	return out, nil
}
