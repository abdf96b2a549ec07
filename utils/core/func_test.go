package core

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reflect"
	"strings"
	"testing"
	"time"
)

type greeter struct{ name string }

func (g *greeter) Greet(prefix string) string {
	return prefix + g.name
}

func TestNewFunc(t *testing.T) {
	_, err := NewFunc(nil)
	assert.True(t, errors.Is(err, ErrNotFunc))

	_, err = NewFunc(1)
	assert.True(t, errors.Is(err, ErrNotFunc))

	var fn func()
	_, err = NewFunc(fn)
	assert.True(t, errors.Is(err, ErrNotFunc))

	f, err := NewFunc(strings.Repeat)
	require.NoError(t, err)
	assert.Equal(t, "strings.Repeat", f.Name())
	assert.Equal(t, []reflect.Type{reflect.TypeOf(""), reflect.TypeOf(0)}, f.In())
	assert.Equal(t, []reflect.Type{reflect.TypeOf("")}, f.Out())
	assert.False(t, f.AcceptContext())

	g := &greeter{name: "go"}
	f, err = NewFunc(g.Greet)
	require.NoError(t, err)
	assert.Equal(t, "gopkg.in/go-mixed/deadline.v1/utils/core.(*greeter).Greet", f.Name())
}

func TestFuncArgs(t *testing.T) {
	f, err := NewFunc(func(ctx context.Context, format string, args ...any) string {
		return fmt.Sprintf(format, args...)
	})
	require.NoError(t, err)
	assert.True(t, f.AcceptContext())

	in, err := f.Args(1, "%d-%s", 1, "a")
	require.NoError(t, err)
	require.Len(t, in, 3)

	out := f.Call(append([]reflect.Value{reflect.ValueOf(context.Background())}, in...))
	assert.Equal(t, "1-a", out[0].String())

	// 可变参数可以为空, nil 可以传给 any
	_, err = f.Args(1, "x")
	assert.NoError(t, err)
	_, err = f.Args(1, "x", nil)
	assert.NoError(t, err)

	_, err = f.Args(1)
	assert.True(t, errors.Is(err, ErrArgs))

	_, err = f.Args(1, 1)
	assert.True(t, errors.Is(err, ErrArgs))
	assert.Contains(t, err.Error(), "argument #1")
}

func TestFuncArgsFixed(t *testing.T) {
	f, err := NewFunc(func(a int, b *int, c []string) {})
	require.NoError(t, err)

	_, err = f.Args(0, 1, nil, nil)
	assert.NoError(t, err)

	_, err = f.Args(0, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrArgs))

	_, err = f.Args(0, 1, nil)
	assert.True(t, errors.Is(err, ErrArgs))

	_, err = f.Args(0, int64(1), nil, nil)
	assert.True(t, errors.Is(err, ErrArgs))
}

func TestWaitGroup(t *testing.T) {
	wg := &WaitGroup{}
	assert.True(t, wg.WaitTimeout(time.Millisecond))

	wg.Add(2)
	assert.EqualValues(t, 2, wg.Counter())

	go func() {
		time.Sleep(20 * time.Millisecond)
		wg.Done()
		wg.Done()
	}()

	assert.False(t, wg.WaitTimeout(time.Millisecond))
	assert.True(t, wg.WaitTimeout(time.Second))
	assert.EqualValues(t, 0, wg.Counter())

	assert.False(t, wg.Done())
	assert.EqualValues(t, 0, wg.Counter())
}

func TestWaitGroupReuseAfterWaitTimeout(t *testing.T) {
	wg := &WaitGroup{}
	for i := 0; i < 10000; i++ {
		wg.Add(1)
		assert.False(t, wg.WaitTimeout(0))
		assert.True(t, wg.Done())
		wg.Add(1)
		assert.True(t, wg.Done())
	}
	assert.True(t, wg.WaitTimeout(0))

	// 多个等待者, 归零后都返回
	wg.Add(1)
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() { results <- wg.WaitTimeout(time.Second) }()
	}
	time.Sleep(10 * time.Millisecond)
	wg.Done()
	for i := 0; i < 3; i++ {
		assert.True(t, <-results)
	}

	wg.Add(2)
	wg.Add(-5)
	assert.EqualValues(t, 0, wg.Counter())
	wg.Wait()
}

func TestGetFrame(t *testing.T) {
	frame := GetFrame(0)
	assert.True(t, strings.HasSuffix(frame.Function, "TestGetFrame"), frame.Function)
	assert.Contains(t, FrameString(frame), "func_test.go:")

	assert.Equal(t, "unknown", FrameString(GetFrame(1000)))
	assert.Equal(t, 3, If(true, 3, 4))
}
